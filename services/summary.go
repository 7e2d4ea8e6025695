package services

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"owner-revenue-scraper/models"
	"owner-revenue-scraper/utils"
)

const sampleSize = 3

type SummaryService struct {
	logger *utils.Logger
	out    io.Writer
}

func NewSummaryService(logger *utils.Logger) *SummaryService {
	return &SummaryService{logger: logger, out: os.Stdout}
}

// WithOutput redirects Print.
func (s *SummaryService) WithOutput(w io.Writer) *SummaryService {
	return &SummaryService{logger: s.logger, out: w}
}

func (s *SummaryService) Generate(month models.TargetMonth, items []models.ResultItem) *models.RunSummary {
	r := &models.RunSummary{
		Month:           month,
		RevenueByOwner:  make(map[string]float64),
		PropertyByOwner: make(map[string]int),
	}
	if len(items) == 0 {
		return r
	}

	r.TotalItems = len(items)
	for _, it := range items {
		r.TotalRevenue += it.OwnerRevenue
		r.RevenueByOwner[it.Owner] += it.OwnerRevenue
		r.PropertyByOwner[it.Owner]++
		if it.OwnerRevenue == 0 {
			r.ZeroRevenue++
		}
	}
	r.Owners = len(r.PropertyByOwner)
	r.TotalRevenue = round2(r.TotalRevenue)
	for k, v := range r.RevenueByOwner {
		r.RevenueByOwner[k] = round2(v)
	}

	n := min(sampleSize, len(items))
	r.Sample = append([]models.ResultItem(nil), items[:n]...)
	return r
}

// Print writes the run report followed by a JSON line with the delivered
// count and the first items.
func (s *SummaryService) Print(r *models.RunSummary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)
	w := s.out

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  OWNER REVENUE %s\033[0m\n", r.Month)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Items delivered      : \033[1m%d\033[0m\n", r.TotalItems)
	fmt.Fprintf(w, "  Owners with items    : \033[1m%d\033[0m\n", r.Owners)
	fmt.Fprintf(w, "  Items at zero        : \033[1m%d\033[0m\n", r.ZeroRevenue)
	fmt.Fprintf(w, "  Total owner revenue  : \033[1;32m%.2f\033[0m\n", r.TotalRevenue)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Revenue by Owner\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.RevenueByOwner) == 0 {
		fmt.Fprintf(w, "  No revenue collected\n")
	} else {
		type ownerTotal struct {
			owner string
			total float64
		}
		var owners []ownerTotal
		for o, v := range r.RevenueByOwner {
			owners = append(owners, ownerTotal{o, v})
		}
		// highest first, name breaks ties
		sort.Slice(owners, func(i, j int) bool {
			if owners[i].total != owners[j].total {
				return owners[i].total > owners[j].total
			}
			return owners[i].owner < owners[j].owner
		})
		for _, o := range owners {
			fmt.Fprintf(w, "  %-32s %3d prop. \033[1;32m%12.2f\033[0m\n",
				truncate(o.owner, 30), r.PropertyByOwner[o.owner], o.total)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)

	out, err := json.MarshalIndent(struct {
		Sent   int                 `json:"sent"`
		Sample []models.ResultItem `json:"sample"`
	}{r.TotalItems, nonNil(r.Sample)}, "", "  ")
	if err != nil {
		s.logger.Warn("[summary] encode sample: %v", err)
		return
	}
	fmt.Fprintln(w, string(out))
}

func nonNil(items []models.ResultItem) []models.ResultItem {
	if items == nil {
		return []models.ResultItem{}
	}
	return items
}

func round2(f float64) float64 {
	if f < 0 {
		return -round2(-f)
	}
	return float64(int64(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
