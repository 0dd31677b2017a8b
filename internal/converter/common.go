package converter

import (
	"errors"
	"time"

	"github.com/promozone/afflink/pkg/market"
)

// timeNow is stubbed in tests that pin the clock.
var timeNow = time.Now

func isMissing(err error) bool {
	return errors.Is(err, market.ErrCredentialsMissing)
}
