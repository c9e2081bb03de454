package verifier

import (
	"context"
	"errors"
	"fmt"
)

// Kind は検証結果の種類を表す。
type Kind int

const (
	// KindUnauthenticated はトークンが提示されなかったことを表す。
	KindUnauthenticated Kind = iota
	// KindAuthenticated は検証に成功したことを表す。
	KindAuthenticated
	// KindFailed は検証に失敗したことを表す。
	KindFailed
)

// String は結果の種類を文字列で返す。
func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindAuthenticated:
		return "authenticated"
	case KindFailed:
		return "failed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Outcome は非同期検証の結果。
// KindAuthenticatedの場合のみIdentityが、KindFailedの場合のみErrが設定される。
type Outcome struct {
	Kind     Kind
	Identity Identity
	Err      error
}

// Unauthenticated はトークン未提示を表すOutcomeを返す。
func Unauthenticated() Outcome {
	return Outcome{Kind: KindUnauthenticated}
}

// Pending は実行中の検証を表す。
type Pending struct {
	done    chan struct{}
	outcome Outcome
}

// errEmptyToken は空のトークンが渡されたことを表す。
var errEmptyToken = errors.New("トークンが空です")

// Start は検証を別のgoroutineで開始し、直ちにPendingを返す。
// 空のトークンはプロバイダーを呼び出さずに失敗として完了する。
func Start(ctx context.Context, v Verifier, token string) *Pending {
	p := &Pending{done: make(chan struct{})}

	if token == "" {
		p.outcome = Outcome{Kind: KindFailed, Err: NewError(ReasonMalformed, errEmptyToken)}
		close(p.done)
		return p
	}

	go func() {
		defer close(p.done)
		defer func() {
			if r := recover(); r != nil {
				p.outcome = Outcome{
					Kind: KindFailed,
					Err:  NewError(ReasonInternal, fmt.Errorf("検証中にパニックが発生: %v", r)),
				}
			}
		}()

		identity, err := v.Verify(ctx, token)
		if err != nil {
			p.outcome = Outcome{Kind: KindFailed, Err: Classify(err)}
			return
		}
		p.outcome = Outcome{Kind: KindAuthenticated, Identity: identity}
	}()

	return p
}

// Wait は検証の完了かctxの終了のどちらか早い方まで待つ。
// ctxが先に終了した場合はタイムアウトまたは取り消しの失敗を返す。
func (p *Pending) Wait(ctx context.Context) Outcome {
	select {
	case <-p.done:
		return p.outcome
	case <-ctx.Done():
		return Outcome{Kind: KindFailed, Err: Classify(ctx.Err())}
	}
}
