package stake

import "errors"

// ErrNoStake is returned by Select when there are no stake bids, or their
// total weight is zero, making weighted sampling impossible.
var ErrNoStake = errors.New("stake: no positive-weight stake bids to select from")
