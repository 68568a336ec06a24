package matching

import (
	"sort"

	"github.com/Ramsey-B/fern/pkg/models"
)

// DefaultMinScore is the raw score an entity needs against an anchor to join its cluster.
const DefaultMinScore = 60.0

// Clusterer groups likely duplicates with a single greedy pass.
//
// Each unvisited entity, in input order, becomes an anchor and absorbs every later
// unvisited entity of the same type scoring at least minScore against it. Members are
// compared with the anchor only, so clustering is not transitive: two entities that
// match each other but not their anchors can end up apart.
type Clusterer struct {
	scorer *Scorer
}

// NewClusterer creates a clusterer backed by scorer
func NewClusterer(scorer *Scorer) *Clusterer {
	return &Clusterer{scorer: scorer}
}

// Cluster returns the clusters with at least two members, highest score first.
// A minScore of zero or less selects DefaultMinScore.
func (c *Clusterer) Cluster(entities []models.Entity, minScore float64) []models.Cluster {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}

	visited := make([]bool, len(entities))
	clusters := make([]models.Cluster, 0)

	for i := range entities {
		if visited[i] {
			continue
		}
		visited[i] = true
		anchor := &entities[i]
		members := []models.Entity{*anchor}

		for j := i + 1; j < len(entities); j++ {
			if visited[j] || entities[j].Type != anchor.Type {
				continue
			}
			if c.scorer.RawScore(anchor, &entities[j]) >= minScore {
				visited[j] = true
				members = append(members, entities[j])
			}
		}

		if len(members) < 2 {
			continue
		}

		clusters = append(clusters, models.Cluster{
			Members: members,
			Score:   c.averagePairwise(members),
		})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Score > clusters[j].Score
	})

	return clusters
}

func (c *Clusterer) averagePairwise(members []models.Entity) float64 {
	total := 0.0
	pairs := 0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			total += c.scorer.RawScore(&members[i], &members[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}
