package tracking

import (
	"fmt"
	"sort"
	"time"

	"github.com/run365/dashboard-go/internal/models"
)

// Column is one column of the tracked-runner table
type Column struct {
	Key            string `json:"key"`
	Label          string `json:"label"`
	CheckpointName string `json:"checkpointName,omitempty"`
}

// Row is one tracked runner
type Row struct {
	RunnerID      *int64             `json:"runnerId,omitempty"`
	Name          string             `json:"name"`
	BibNumber     string             `json:"bibNumber"`
	Checkpoints   []CheckpointCell   `json:"checkpoints"`
	Status        models.StatusBadge `json:"status"`
	UpdatedAt     string             `json:"updatedAt"`
	IsAutoRefresh bool               `json:"isAutoRefresh"`
	ResultState   string             `json:"resultState"`
	Refresh       *RunnerState       `json:"refresh,omitempty"`
}

// Table is the tracked-runner table of one group
type Table struct {
	GroupID   int64    `json:"groupId"`
	GroupName string   `json:"groupName"`
	Columns   []Column `json:"columns"`
	Rows      []Row    `json:"rows"`
}

// SortedCheckpoints orders checkpoints by sortOrder, keeping input order on ties
func SortedCheckpoints(cps []models.CheckPoint) []models.CheckPoint {
	out := append([]models.CheckPoint(nil), cps...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortOrder < out[j].SortOrder
	})
	return out
}

// BuildTable lays out the group's runners against its checkpoints. ok is
// false when the group tracks nobody and no table should be shown. engine
// may be nil; rows then carry no refresh state.
func BuildTable(group *models.EventGroup, engine *Engine, loc *time.Location) (Table, bool) {
	if len(group.TrackedRunners) == 0 {
		return Table{}, false
	}

	checkpoints := SortedCheckpoints(group.Checkpoints)

	columns := make([]Column, 0, len(checkpoints)+3)
	columns = append(columns, Column{Key: "nicknameAndBib", Label: "昵称"})
	for _, cp := range checkpoints {
		columns = append(columns, Column{
			Key:            fmt.Sprintf("cp_%d", cp.ID),
			Label:          cp.Name,
			CheckpointName: cp.Name,
		})
	}
	columns = append(columns,
		Column{Key: "status", Label: "状态"},
		Column{Key: "updatedAt", Label: "更新时间"},
	)

	rows := make([]Row, 0, len(group.TrackedRunners))
	for i := range group.TrackedRunners {
		r := &group.TrackedRunners[i]

		var result Result
		if r.LatestResult != nil {
			result = DecodeResult(r.LatestResult.Result)
		}

		cells := make([]CheckpointCell, len(checkpoints))
		for j, cp := range checkpoints {
			cells[j] = result.Checkpoint(cp.Name)
		}

		bib := r.BibNumber
		if bib == "" {
			bib = "-"
		}
		row := Row{
			RunnerID:      r.ID,
			Name:          r.DisplayName(),
			BibNumber:     bib,
			Checkpoints:   cells,
			Status:        r.Status.Badge(),
			UpdatedAt:     FormatUpdatedAt(r.LastRefreshAt, loc),
			IsAutoRefresh: r.IsAutoRefresh,
			ResultState:   result.State.String(),
		}
		if engine != nil && r.ID != nil {
			st := engine.State(*r.ID)
			row.Refresh = &st
		}
		rows = append(rows, row)
	}

	return Table{
		GroupID:   group.ID,
		GroupName: group.Name,
		Columns:   columns,
		Rows:      rows,
	}, true
}
