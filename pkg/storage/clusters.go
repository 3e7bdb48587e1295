package storage

import "sort"

// ClusterMember is one memory's contribution to cluster construction.
type ClusterMember struct {
	ID         string
	Text       string
	Importance float64
	Embedding  []float64
}

// BuildClusters groups members into the connected components of the
// similarity graph: an edge joins two members when their cosine similarity
// reaches the threshold. Components with fewer than two members are
// dropped.
//
// Cosine similarity is not transitive, so a component may contain pairs
// well below the threshold that are only linked through intermediaries.
// Callers that need the actual pair values ask for scores, which populates
// Similarities with every intra-cluster pair keyed by PairKey.
func BuildClusters(members []ClusterMember, threshold float64, withScores bool) []*DuplicateCluster {
	n := len(members)
	if n < 2 {
		return nil
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[rj] = ri
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if CosineSimilarity(members[i].Embedding, members[j].Embedding) >= threshold {
				union(i, j)
			}
		}
	}

	// Collect components in first-member order so output is stable.
	groups := make(map[int][]int)
	var roots []int
	for i := 0; i < n; i++ {
		root := find(i)
		if _, ok := groups[root]; !ok {
			roots = append(roots, root)
		}
		groups[root] = append(groups[root], i)
	}

	var clusters []*DuplicateCluster
	for _, root := range roots {
		idxs := groups[root]
		if len(idxs) < 2 {
			continue
		}

		cluster := &DuplicateCluster{
			MemoryIDs:   make([]string, 0, len(idxs)),
			Texts:       make([]string, 0, len(idxs)),
			Importances: make([]float64, 0, len(idxs)),
		}
		for _, i := range idxs {
			cluster.MemoryIDs = append(cluster.MemoryIDs, members[i].ID)
			cluster.Texts = append(cluster.Texts, members[i].Text)
			cluster.Importances = append(cluster.Importances, members[i].Importance)
		}

		if withScores {
			cluster.Similarities = make(map[string]float64, len(idxs)*(len(idxs)-1)/2)
			for a := 0; a < len(idxs); a++ {
				for b := a + 1; b < len(idxs); b++ {
					i, j := idxs[a], idxs[b]
					key := PairKey(members[i].ID, members[j].ID)
					cluster.Similarities[key] = CosineSimilarity(members[i].Embedding, members[j].Embedding)
				}
			}
		}

		clusters = append(clusters, cluster)
	}
	return clusters
}

// ConflictMember is one memory's contribution to conflict candidate
// selection.
type ConflictMember struct {
	ID        string
	Text      string
	Category  string
	Embedding []float64
}

// conflictableCategories are the content categories where two memories
// can meaningfully contradict each other.
var conflictableCategories = map[string]bool{
	CategoryPreference: true,
	CategoryFact:       true,
	CategoryDecision:   true,
}

// BuildConflictPairs selects candidate pairs for conflict adjudication:
// same-category members whose cosine similarity falls inside
// [ConflictSimilarityFloor, ConflictSimilarityCeil). Pairs come back
// most similar first, capped at MaxConflictPairs.
func BuildConflictPairs(members []ConflictMember) []*ConflictPair {
	type scoredPair struct {
		pair *ConflictPair
		sim  float64
	}

	var candidates []scoredPair
	for i := 0; i < len(members); i++ {
		if !conflictableCategories[members[i].Category] {
			continue
		}
		for j := i + 1; j < len(members); j++ {
			if members[j].Category != members[i].Category {
				continue
			}
			sim := CosineSimilarity(members[i].Embedding, members[j].Embedding)
			if sim < ConflictSimilarityFloor || sim >= ConflictSimilarityCeil {
				continue
			}
			candidates = append(candidates, scoredPair{
				pair: &ConflictPair{
					IDA:   members[i].ID,
					TextA: members[i].Text,
					IDB:   members[j].ID,
					TextB: members[j].Text,
				},
				sim: sim,
			})
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].sim > candidates[b].sim
	})
	if len(candidates) > MaxConflictPairs {
		candidates = candidates[:MaxConflictPairs]
	}

	pairs := make([]*ConflictPair, 0, len(candidates))
	for _, c := range candidates {
		pairs = append(pairs, c.pair)
	}
	return pairs
}
