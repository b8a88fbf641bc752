// Package schedule computes time-gated unlock state for a static roster of entities.
//
// Every function takes the current instant as a parameter and keeps no state between calls, so the same
// inputs always give the same answer. Entities in a region unlock one per day in ascending position order,
// starting UnlockLeadDays before the region's kickoff. An optional global override window unlocks every
// entity and every region while it is active.
package schedule
