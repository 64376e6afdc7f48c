package dispatch

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

const renewalKey = "renew"

// errSessionEnded is returned when the refresh credential was removed before a
// renewal could start. Whoever removed it has already signed the user out.
var errSessionEnded = errors.New("session already ended")

// renew returns an access token to retry with. sentToken is the token the
// failed request carried: when the store already holds a different one, an
// earlier renewal replaced it and no new round trip is made. The refresh
// credential is read when the renewal starts, not when the 401 arrived.
//
// Requests that hit 401 while a renewal is in flight join it. The renewal is
// detached from ctx so a caller giving up does not fail it for the others.
func (d *Dispatcher) renew(ctx context.Context, sentToken string) (string, error) {
	detached := context.WithoutCancel(ctx)
	ch := d.renewals.DoChan(renewalKey, func() (interface{}, error) {
		if current, ok := d.store.Credential(); ok && current != sentToken {
			return current, nil
		}
		refreshToken, ok := d.store.RefreshCredential()
		if !ok {
			return "", errSessionEnded
		}
		return d.refreshAndStore(detached, refreshToken)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (d *Dispatcher) refreshAndStore(ctx context.Context, refreshToken string) (string, error) {
	result, err := d.renewer.Refresh(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	if result == nil || result.Token == "" {
		return "", &RenewalError{Cause: errors.New("renewal response carried no token")}
	}
	if err := d.store.SetCredential(result.Token); err != nil {
		return "", &RenewalError{Cause: err}
	}
	if result.RefreshToken != "" {
		d.store.SetRefreshCredential(result.RefreshToken)
	}
	if result.User != nil {
		if err := d.store.SetUserProfile(result.User); err != nil {
			log.Warn().Err(err).Msg("renewal returned an unusable profile, keeping the stored one")
		}
	}
	log.Info().Msg("session renewed")
	return result.Token, nil
}
