package acquisition

import "sort"

// DefaultQualityCeilings are the resolution ceilings of the static video policy.
var DefaultQualityCeilings = []int{1080, 720, 480, 360}

// tierPriority is the single source of truth for catalog ordering per mode.
var tierPriority = map[Mode][]Tier{
	ModeVideo:     {TierAudioVideo, TierVideoOnly, TierAudioOnly},
	ModeAudioOnly: {TierAudioOnly, TierAudioVideo, TierVideoOnly},
}

// TierPriority returns the tier order used for mode.
func TierPriority(mode Mode) []Tier {
	if order, ok := tierPriority[mode]; ok {
		return order
	}
	return tierPriority[ModeVideo]
}

// Plan merges the classified catalog with the static policy of mode into one
// ordered queue. All catalog candidates precede all static candidates, and
// no spec appears twice.
func Plan(classified []ClassifiedFormat, mode Mode, qualityCeilings []int, blacklist ContainerSet) []CandidateSpec {
	plan := make([]CandidateSpec, 0, len(classified)+len(qualityCeilings)+4)
	seen := make(map[string]struct{})

	add := func(spec CandidateSpec) {
		if spec.Container != "" && blacklist.Contains(spec.Container) {
			return
		}
		key := spec.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		plan = append(plan, spec)
	}

	for _, tier := range TierPriority(mode) {
		for _, f := range classified {
			if f.Tier == tier {
				add(CatalogCandidate(f))
			}
		}
	}

	for _, spec := range StaticPolicy(mode, qualityCeilings) {
		add(spec)
	}

	return plan
}

// StaticPolicy is the catalog-independent tail of every plan.
//
// Video: one "best up to N, mp4" per ceiling (descending), then best, then worst.
// Audio: best m4a audio, best audio, worst audio, then best and worst muxed
// streams that still carry an audio track.
func StaticPolicy(mode Mode, qualityCeilings []int) []CandidateSpec {
	if mode == ModeAudioOnly {
		return []CandidateSpec{
			{Kind: CandidatePolicy, Selector: SelectBest, AudioOnly: true, Container: "m4a"},
			{Kind: CandidatePolicy, Selector: SelectBest, AudioOnly: true},
			{Kind: CandidatePolicy, Selector: SelectWorst, AudioOnly: true},
			{Kind: CandidatePolicy, Selector: SelectBest},
			{Kind: CandidatePolicy, Selector: SelectWorst},
		}
	}

	ceilings := normalizeCeilings(qualityCeilings)
	specs := make([]CandidateSpec, 0, len(ceilings)+2)
	for _, ceiling := range ceilings {
		specs = append(specs, CandidateSpec{
			Kind:      CandidatePolicy,
			Selector:  SelectBest,
			MaxHeight: ceiling,
			Container: "mp4",
		})
	}
	specs = append(specs,
		CandidateSpec{Kind: CandidatePolicy, Selector: SelectBest},
		CandidateSpec{Kind: CandidatePolicy, Selector: SelectWorst},
	)
	return specs
}

// normalizeCeilings drops non-positive values and duplicates and sorts descending.
func normalizeCeilings(ceilings []int) []int {
	out := make([]int, 0, len(ceilings))
	seen := make(map[int]struct{}, len(ceilings))
	for _, c := range ceilings {
		if c <= 0 {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}
