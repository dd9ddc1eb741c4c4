// Package cluster partitions media items into similarity groups using greedy
// single-link clustering over perceptual fingerprints.
//
// All variants share the same pass: the next unprocessed item with a valid
// fingerprint becomes an anchor, remaining unprocessed items within threshold
// of the anchor are absorbed, and absorbed items are never reassigned
// (first-anchor-wins, with anchor order following input order). Singleton
// groups are dropped. Output groups are sorted newest-first by their first
// member; members within a group are most-recent-first.
package cluster

import (
	"sort"
	"time"

	"github.com/lKakarot/phone-cleaner/internal/constants"
	"github.com/lKakarot/phone-cleaner/internal/fingerprint"
	"github.com/lKakarot/phone-cleaner/internal/media"
)

// Flat clusters all items with a valid fingerprint in a single global pass.
func Flat(items []media.Item, fps map[string]uint64, threshold int) []media.Group {
	if threshold <= 0 {
		threshold = constants.DefaultFlatThreshold
	}

	groups := greedy(items, fps, func(anchor, candidate media.Item, distance int) bool {
		return distance <= threshold
	})

	return finalize(groups)
}

// DateWindowed clusters items taken close together in time. Items are
// pre-bucketed by ISO year and week purely as a performance filter; within
// the greedy scan a candidate must additionally be within dayWindow days of
// the anchor, independent of bucket membership. Items without a timestamp
// are excluded from this variant.
func DateWindowed(items []media.Item, fps map[string]uint64, threshold, dayWindow int) []media.Group {
	if threshold <= 0 {
		threshold = constants.DefaultDateWindowedThreshold
	}
	if dayWindow <= 0 {
		dayWindow = constants.DefaultDayWindow
	}

	type bucketKey struct {
		year int
		week int
	}
	var order []bucketKey
	buckets := make(map[bucketKey][]media.Item)
	for _, item := range items {
		if !item.HasTakenAt() {
			continue
		}
		year, week := item.TakenAt.ISOWeek()
		key := bucketKey{year, week}
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], item)
	}

	var groups []media.Group
	for _, key := range order {
		bucketGroups := greedy(buckets[key], fps, func(anchor, candidate media.Item, distance int) bool {
			return distance <= threshold && withinDays(anchor, candidate, dayWindow)
		})
		groups = append(groups, bucketGroups...)
	}

	return finalize(groups)
}

// DualThreshold clusters with two thresholds: distances up to strict cluster
// unconditionally (bursts and edited variants regardless of date), while
// distances up to loose cluster only when anchor and candidate were taken
// within dayWindow days of each other.
func DualThreshold(items []media.Item, fps map[string]uint64, strict, loose, dayWindow int) []media.Group {
	if strict <= 0 {
		strict = constants.DefaultStrictThreshold
	}
	if loose <= 0 {
		loose = constants.DefaultLooseThreshold
	}
	if dayWindow <= 0 {
		dayWindow = constants.DefaultDualDayWindow
	}

	groups := greedy(items, fps, func(anchor, candidate media.Item, distance int) bool {
		if distance <= strict {
			return true
		}
		if distance > loose {
			return false
		}
		if !anchor.HasTakenAt() || !candidate.HasTakenAt() {
			return false
		}
		return withinDays(anchor, candidate, dayWindow)
	})

	return finalize(groups)
}

// greedy runs the shared single-link pass. The processed set is local to the
// call; absorb decides membership given the anchor, a candidate, and their
// fingerprint distance. Items with a sentinel fingerprint never participate.
func greedy(items []media.Item, fps map[string]uint64, absorb func(anchor, candidate media.Item, distance int) bool) []media.Group {
	processed := make(map[string]bool, len(items))

	var groups []media.Group
	for i, anchor := range items {
		anchorFP, ok := fps[anchor.ID]
		if !ok || anchorFP == fingerprint.Sentinel || processed[anchor.ID] {
			continue
		}
		processed[anchor.ID] = true

		members := []media.Item{anchor}
		for _, candidate := range items[i+1:] {
			candidateFP, ok := fps[candidate.ID]
			if !ok || candidateFP == fingerprint.Sentinel || processed[candidate.ID] {
				continue
			}
			distance := fingerprint.HammingDistance(anchorFP, candidateFP)
			if absorb(anchor, candidate, distance) {
				processed[candidate.ID] = true
				members = append(members, candidate)
			}
		}

		if len(members) >= 2 {
			groups = append(groups, media.Group{Items: members})
		}
	}

	return groups
}

// finalize orders members most-recent-first and groups newest-first by their
// first member.
func finalize(groups []media.Group) []media.Group {
	for _, g := range groups {
		sortMembersNewestFirst(g.Items)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Items[0].TakenAt.After(groups[j].Items[0].TakenAt)
	})
	return groups
}

func sortMembersNewestFirst(items []media.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].TakenAt.After(items[j].TakenAt)
	})
}

// withinDays reports whether two items' timestamps are at most days 24-hour
// periods apart.
func withinDays(a, b media.Item, days int) bool {
	d := a.TakenAt.Sub(b.TakenAt)
	if d < 0 {
		d = -d
	}
	return d <= time.Duration(days)*24*time.Hour
}
