// Package dedupe identifies and merges posting and company candidates
// that represent the same real-world entity across sources. Candidates
// are grouped by a blocking key to bound pairwise comparisons; within
// a block a weighted similarity score decides matches.
package dedupe

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jobpulse/jobpulse-cli/internal/config"
	"github.com/jobpulse/jobpulse-cli/internal/model"
	"github.com/jobpulse/jobpulse-cli/internal/vocab"
)

// Deduper clusters posting candidates into canonical postings.
type Deduper struct {
	cfg config.DedupeConfig
}

// New creates a Deduper with the given policy.
func New(cfg config.DedupeConfig) *Deduper {
	return &Deduper{cfg: cfg}
}

// cluster accumulates candidates judged to be the same posting. The
// seed fixes the cluster identifier: later matches join the cluster
// without changing it.
type cluster struct {
	seed    model.PostingCandidate
	members []model.PostingCandidate
}

// blockKey is the coarse grouping key: candidates can only match
// within the same normalized company, city, and ISO week.
func blockKey(c model.PostingCandidate) string {
	year, week := c.PostedAt.ISOWeek()
	return fmt.Sprintf("%s|%s|%d-W%02d", c.CompanyKey, c.CityKey, year, week)
}

// Postings clusters the candidates and returns the canonical postings
// with their dedup clusters. Results are independent of input order:
// candidates are deterministically sorted before clustering, and
// output is sorted by posting id. Blocks are processed in parallel;
// clustering within a block is sequential. No candidate is ever
// dropped: a candidate matching nothing becomes its own singleton
// canonical posting.
func (d *Deduper) Postings(ctx context.Context, candidates []model.PostingCandidate) ([]model.Posting, []model.DedupCluster, error) {
	blocks := make(map[string][]model.PostingCandidate)
	for _, c := range candidates {
		key := blockKey(c)
		blocks[key] = append(blocks[key], c)
	}

	workers := d.cfg.BlockWorkers
	if workers <= 0 {
		workers = 4
	}

	var (
		mu       sync.Mutex
		postings []model.Posting
		clusters []model.DedupCluster
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for key, block := range blocks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			blockPostings, blockClusters := d.clusterBlock(block)

			mu.Lock()
			postings = append(postings, blockPostings...)
			clusters = append(clusters, blockClusters...)
			mu.Unlock()

			if len(block) > len(blockPostings) {
				zap.L().Debug("dedupe: merged within block",
					zap.String("block", key),
					zap.Int("candidates", len(block)),
					zap.Int("canonical", len(blockPostings)),
				)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Slice(postings, func(i, j int) bool { return postings[i].ID < postings[j].ID })
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ID < clusters[j].ID })

	return postings, clusters, nil
}

// clusterBlock greedily clusters one block. Candidates are first
// sorted by content identity so the seeds, and therefore the cluster
// identifiers, do not depend on fetch or processing order.
func (d *Deduper) clusterBlock(block []model.PostingCandidate) ([]model.Posting, []model.DedupCluster) {
	sortCandidates(block)

	var cs []*cluster
	for _, cand := range block {
		matched := false
		for _, cl := range cs {
			if score(d.cfg, cl.seed, cand) >= d.cfg.Threshold {
				cl.members = append(cl.members, cand)
				matched = true
				break
			}
		}
		if !matched {
			cs = append(cs, &cluster{seed: cand, members: []model.PostingCandidate{cand}})
		}
	}

	postings := make([]model.Posting, 0, len(cs))
	clusters := make([]model.DedupCluster, 0, len(cs))
	for _, cl := range cs {
		p := d.merge(cl)
		postings = append(postings, p)

		memberIDs := make([]string, 0, len(cl.members))
		sourceIDs := make([]string, 0, len(cl.members))
		for _, m := range cl.members {
			memberIDs = append(memberIDs, m.ID())
			sourceIDs = appendUnique(sourceIDs, m.SourceID)
		}
		clusters = append(clusters, model.DedupCluster{
			ID:        cl.seed.ID(),
			PostingID: p.ID,
			MemberIDs: memberIDs,
			SourceIDs: sourceIDs,
		})
	}

	return postings, clusters
}

// sortCandidates orders candidates by content hash, then authority
// (lower rank = more authoritative), then recency, then source id.
// This makes clustering deterministic under any arrival order.
func sortCandidates(block []model.PostingCandidate) {
	sort.Slice(block, func(i, j int) bool {
		a, b := block[i], block[j]
		if aid, bid := a.ID(), b.ID(); aid != bid {
			return aid < bid
		}
		if a.Authority != b.Authority {
			return a.Authority < b.Authority
		}
		if !a.FetchedAt.Equal(b.FetchedAt) {
			return a.FetchedAt.After(b.FetchedAt)
		}
		return a.SourceID < b.SourceID
	})
}

// merge builds the canonical posting for a cluster. Field conflicts
// resolve to the most authoritative source, ties to the most recently
// fetched. Skills are the union in that order, insertion order
// preserved within each candidate. The canonical identifier is the
// seed's posting id.
func (d *Deduper) merge(cl *cluster) model.Posting {
	ordered := make([]model.PostingCandidate, len(cl.members))
	copy(ordered, cl.members)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Authority != b.Authority {
			return a.Authority < b.Authority
		}
		if !a.FetchedAt.Equal(b.FetchedAt) {
			return a.FetchedAt.After(b.FetchedAt)
		}
		return a.SourceID < b.SourceID
	})

	win := ordered[0]
	p := model.Posting{
		ID:          cl.seed.ID(),
		Title:       win.Title,
		TitleKey:    win.TitleKey,
		Company:     win.Company,
		CompanyKey:  win.CompanyKey,
		City:        win.City,
		CityKey:     win.CityKey,
		Sector:      win.Sector,
		PostedAt:    win.PostedAt,
		Salary:      win.Salary,
		URL:         win.URL,
		Description: win.Description,
	}

	// Fill gaps from less authoritative members and union the skills.
	seenSkill := make(map[string]bool)
	for _, m := range ordered {
		if p.Sector == "" || (p.Sector == vocab.Unclassified && m.Sector != vocab.Unclassified && m.Sector != "") {
			p.Sector = m.Sector
		}
		if p.Salary == 0 {
			p.Salary = m.Salary
		}
		if p.URL == "" {
			p.URL = m.URL
		}
		if p.Description == "" {
			p.Description = m.Description
		}
		for _, s := range m.Skills {
			if !seenSkill[s] {
				seenSkill[s] = true
				p.Skills = append(p.Skills, s)
			}
		}
		p.Sources = appendUnique(p.Sources, m.SourceID)
		if m.NativeID != "" {
			p.NativeIDs = appendUnique(p.NativeIDs, m.NativeID)
		}
	}

	return p
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
