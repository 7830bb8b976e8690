package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"order-pipeline/internal/repo"
)

const (
	codePrefix    = "HD"
	codeDayLayout = "20060102"
	codeSeqWidth  = 4
)

// CodePrefix is the day-scoped prefix shared by every order code created on t's calendar day.
func CodePrefix(t time.Time) string {
	return codePrefix + t.Format(codeDayLayout)
}

// NextCode returns the code following latest within prefix. latest may be empty or carry a
// suffix that is not a number, in which case the sequence starts over at 1.
func NextCode(prefix, latest string) string {
	seq := 1
	if suffix, ok := strings.CutPrefix(latest, prefix); ok {
		if n, err := strconv.Atoi(suffix); err == nil && n > 0 {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%0*d", prefix, codeSeqWidth, seq)
}

type codeGenerator struct {
	orderRepo repo.OrderRepo
	loc       *time.Location
}

// Next allocates the code inside tx. The prefix stays locked until tx ends.
func (g *codeGenerator) Next(ctx context.Context, tx *sql.Tx, now time.Time) (string, error) {
	prefix := CodePrefix(now.In(g.loc))
	latest, err := g.orderRepo.LatestCodeWithPrefix(ctx, tx, prefix)
	if err != nil {
		return "", err
	}
	return NextCode(prefix, latest), nil
}
