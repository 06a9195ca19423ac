// Package ratelimit paces requests to the market-data API.
//
// Two algorithms are available: a token bucket that refills to capacity once
// per period, and a sliding window that admits at most N requests in any
// window. Both block in Wait until a slot frees up or the context is
// cancelled. Pacing only spaces requests out; a failed request is never
// re-sent by this package.
//
//	limiter, err := ratelimit.New(ratelimit.StrategyTokenBucket, 5)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err // cancelled
//	}
package ratelimit
