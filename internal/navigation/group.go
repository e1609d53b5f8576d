package navigation

import (
	"github.com/claude/liftlog/internal/models"
)

// SlideKind distinguishes one exercise from a block of sub-exercises.
type SlideKind string

const (
	SlideSingle SlideKind = "single"
	SlideGroup  SlideKind = "group"
)

// Group titles.
const (
	TitleEMOM     = "EMOM"
	TitleCircuit  = "Circuit"
	TitleSuperset = "Superset"
)

// Slide is one page of the guided view.
type Slide struct {
	Kind      SlideKind             `json:"kind"`
	Title     string                `json:"title"`
	Order     int                   `json:"order"`
	Exercises []models.Exercise     `json:"exercises"`
	Superset  bool                  `json:"superset,omitempty"`
	Timed     bool                  `json:"timed,omitempty"`
	Circuit   *models.CircuitConfig `json:"circuit,omitempty"`
}

// GroupExercises turns a day's exercise list into slides, one per exercise,
// in the same order. An exercise with sub-items becomes a group slide whose
// members inherit the parent's prescription.
func GroupExercises(day models.WorkoutDay) []Slide {
	slides := make([]Slide, 0, len(day.Exercises))
	for _, ex := range day.Exercises {
		if len(ex.Items) == 0 {
			slides = append(slides, Slide{
				Kind:      SlideSingle,
				Title:     ex.Name,
				Order:     ex.Order,
				Exercises: []models.Exercise{ex},
			})
			continue
		}

		members := make([]models.Exercise, len(ex.Items))
		for i, item := range ex.Items {
			members[i] = inherit(ex, item)
		}
		cfg := circuitConfig(ex)
		slides = append(slides, Slide{
			Kind:      SlideGroup,
			Title:     groupTitle(ex),
			Order:     ex.Order,
			Exercises: members,
			Superset:  ex.IsSuperset,
			Timed:     cfg != nil,
			Circuit:   cfg,
		})
	}
	return slides
}

func groupTitle(ex models.Exercise) string {
	switch {
	case ex.IsEMOM:
		return TitleEMOM
	case ex.CircuitDetails != nil:
		return TitleCircuit
	case ex.IsSuperset:
		return TitleSuperset
	default:
		return ex.Name
	}
}

// circuitConfig coerces the block's textual config to whole seconds.
// Unparsable values become 0. A block flagged EMOM runs as EMOM even when it
// also carries circuitDetails, matching its title.
func circuitConfig(ex models.Exercise) *models.CircuitConfig {
	switch {
	case ex.IsEMOM:
		cfg := &models.CircuitConfig{Type: models.CircuitEMOM}
		if ex.EMOMDetails != nil {
			cfg.Intervals = ex.EMOMDetails.TotalIntervals.Int()
		}
		return cfg
	case ex.CircuitDetails != nil:
		return &models.CircuitConfig{
			Type:              models.CircuitRounds,
			TotalRounds:       ex.CircuitDetails.TotalRounds.Int(),
			RestBetweenEx:     ex.CircuitDetails.RestBetweenExercisesSeconds.Int(),
			RestBetweenRounds: ex.CircuitDetails.RestBetweenRoundsSeconds.Int(),
		}
	}
	return nil
}

// inherit builds a full exercise for a group member: the member's own
// fields where set, the parent's otherwise, and always the parent's order.
func inherit(parent models.Exercise, item models.SubExercise) models.Exercise {
	ex := models.Exercise{
		Order:    parent.Order,
		Name:     item.Name,
		Reps:     parent.Reps,
		Sets:     parent.Sets,
		Rest:     parent.Rest,
		ImageURL: parent.ImageURL,
		VideoURL: parent.VideoURL,
		Notes:    parent.Notes,
	}
	if item.Reps != "" {
		ex.Reps = item.Reps
	}
	if item.Sets > 0 {
		ex.Sets = item.Sets
	}
	if item.Rest != "" {
		ex.Rest = item.Rest
	}
	if item.ImageURL != "" {
		ex.ImageURL = item.ImageURL
	}
	if item.VideoURL != "" {
		ex.VideoURL = item.VideoURL
	}
	if item.Notes != "" {
		ex.Notes = item.Notes
	}
	return ex
}
