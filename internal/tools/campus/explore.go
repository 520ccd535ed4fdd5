package campus

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/campusmarket/accountkit/internal/identity"
	"github.com/campusmarket/accountkit/internal/listing"
	"github.com/campusmarket/accountkit/internal/tools/common"
)

func newExploreCommand(opts *options) *cobra.Command {
	filter := listing.DefaultFilter()
	var page listing.PageRequest
	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Browse marketplace listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := filter.Validate(); err != nil {
				return usageError(cmd, opts, "explore", identity.NewError(identity.CodeValidationFailed, err.Error()))
			}
			res := listing.Paginate(filter.Apply(listing.SampleCatalog()), page)
			details := make([]string, 0, len(res.Items)+1)
			details = append(details, fmt.Sprintf("%d listings, page %d of %d, %d filters active",
				res.Total, res.Page, res.TotalPages, filter.ActiveCount()))
			for _, l := range res.Items {
				details = append(details, fmt.Sprintf("%-3s %-22s $%6.2f  %-9s %s", l.ID, l.Title, l.Price, l.Condition, l.Category))
			}
			common.Record(cmd.Context(), toolName, "explore", start, nil)
			return report(cmd, opts, "explore", details, nil, 0)
		},
	}
	cmd.Flags().StringVarP(&filter.Query, "query", "q", "", "search listing titles")
	cmd.Flags().StringVar(&filter.Category, "category", listing.All, "category filter")
	cmd.Flags().StringVar(&filter.Condition, "condition", listing.All, "condition filter")
	cmd.Flags().Float64Var(&filter.MinPrice, "min-price", listing.DefaultMinPrice, "minimum price")
	cmd.Flags().Float64Var(&filter.MaxPrice, "max-price", listing.DefaultMaxPrice, "maximum price")
	cmd.Flags().IntVar(&page.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&page.PageSize, "page-size", listing.DefaultPageSize, "listings per page")
	return cmd
}
