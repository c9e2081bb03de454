// Package verifier はBearerトークンを外部IDプロバイダーで検証し、
// 検証済みのアイデンティティを返す処理を提供する。
//
// Firebase IDトークンの検証、HTTP経由のリモート検証、サーキットブレーカー、
// メトリクス・トレーシング計装を含む。検証は1リクエストにつき1回だけ行い、
// 結果のキャッシュやリトライは行わない。
package verifier
