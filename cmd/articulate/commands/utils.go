package commands

import (
	"context"
	"fmt"
	"os"

	"autoclass-backend/internal/assist"
	"autoclass-backend/internal/components/chrono"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func newClient(ctx context.Context) (*assist.Client, error) {
	session := assist.NewSession(ctx, config.AssistOptions(), tel)
	err := session.Err()
	if err != nil {
		return nil, err
	}
	return assist.NewClient(session), nil
}

type pair struct {
	year      assist.AcademicYear
	sending   assist.Institution
	receiving assist.Institution
}

// resolvePair looks up the academic year and both institutions the way a
// resolution would.
func resolvePair(ctx context.Context, client *assist.Client, from, to, year string) (pair, error) {
	years, err := client.Years(ctx)
	if err != nil {
		return pair{}, err
	}
	picked, ok := assist.PickYear(years, year, chrono.NewStandardImpl().Now())
	if !ok {
		return pair{}, fmt.Errorf("could not determine academic year")
	}

	directory, err := client.Institutions(ctx)
	if err != nil {
		return pair{}, err
	}
	source, target, err := assist.ResolveInstitutions(directory, from, to)
	if err != nil {
		return pair{}, err
	}

	return pair{
		year:      picked,
		sending:   assist.Institution{ID: *source.ID, Name: source.Name},
		receiving: assist.Institution{ID: *target.ID, Name: target.Name},
	}, nil
}
