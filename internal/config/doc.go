// Package config はゲートウェイの設定を読み込む。
//
// 設定は次の順に重ねて適用される。
//  1. 組み込みのデフォルト値
//  2. YAMLファイル（-configフラグ、AUTHGATE_CONFIG環境変数の順に探す）
//  3. 環境変数による上書き
//  4. 検証
package config
