// Package batch implements the offline robust batch scheduler.
//
// Jobs needing material are assigned to a fixed AGV fleet by a beam search
// over insertion orders: jobs sorted by probable deadline seed one vehicle
// each, the rest are processed in batches whose permutations are simulated
// greedily against the earliest deadlines. Only the best candidates survive
// each batch, and the winner is re-simulated against the probable
// deadlines.
package batch
