// Package retry re-runs operations that failed with a transient error
// (network, rate limit, server), backing off between attempts.
//
// The aggregates fetch never uses it: a failed contract is recorded and left
// for the next run. It serves operations without a checkpoint of their own,
// such as the contract listing export, where one failed page would otherwise
// lose every page before it.
//
//	contracts, err := retry.DoWithResult(ctx, func(ctx context.Context) ([]models.ContractRecord, error) {
//		return client.ListContracts(ctx, q)
//	}, retry.DefaultConfig())
package retry
