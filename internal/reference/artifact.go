package reference

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apartment-estimator/backend/internal/model"
	"github.com/apartment-estimator/backend/internal/stats"
	"github.com/apartment-estimator/backend/pkg/utils"
)

// ErrArtifactMissing marks a required reference resource that is absent or
// malformed. No estimate can be produced without it.
var ErrArtifactMissing = errors.New("reference artifact missing or malformed")

type Category string

const (
	CategoryBuy  Category = "buy"
	CategoryRent Category = "rent"
)

// Categories lists the price categories in the order they are estimated.
var Categories = []Category{CategoryBuy, CategoryRent}

// ModelArtifact is a trained model together with its training schema and
// out-of-sample error samples. It is immutable after load.
type ModelArtifact struct {
	Category        Category
	Model           model.Predictor
	ExpectedColumns []string
	// ErrorsAbs holds absolute relative errors; kept for diagnostics only.
	ErrorsAbs []float64
	// ErrorsSigned holds signed log-ratio errors log(predicted/actual).
	ErrorsSigned []float64
	// Checksum identifies the bundle contents.
	Checksum string
}

// artifactFile is the on-disk bundle written by the training process.
type artifactFile struct {
	Category     string          `json:"category"`
	Model        json.RawMessage `json:"model"`
	ColumnsUsed  []string        `json:"columns_used"`
	TestErrors   []float64       `json:"test_errors"`
	TestErrorsNA []float64       `json:"test_errors_notAbsolute"`
}

// ArtifactPath is where the bundle for a category lives inside dir.
func ArtifactPath(dir string, cat Category) string {
	return filepath.Join(dir, "model_"+string(cat)+".json")
}

// LoadModelArtifacts loads the buy and rent bundles from dir.
func LoadModelArtifacts(dir string) (map[Category]*ModelArtifact, error) {
	artifacts := make(map[Category]*ModelArtifact, len(Categories))
	for _, cat := range Categories {
		a, err := LoadModelArtifact(ArtifactPath(dir, cat), cat)
		if err != nil {
			return nil, err
		}
		artifacts[cat] = a
	}
	return artifacts, nil
}

func LoadModelArtifact(path string, cat Category) (*ModelArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactMissing, path, err)
	}

	a, err := ParseModelArtifact(data, cat)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// ParseModelArtifact decodes and validates one bundle. Every field must be
// present, the column list unique, and the signed error sample finite with an
// ordered 5th/95th percentile pair.
func ParseModelArtifact(data []byte, cat Category) (*ModelArtifact, error) {
	var f artifactFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrArtifactMissing, err)
	}

	if f.Category != "" && Category(f.Category) != cat {
		return nil, fmt.Errorf("%w: bundle is for category %q, want %q", ErrArtifactMissing, f.Category, cat)
	}
	if len(f.Model) == 0 || string(f.Model) == "null" {
		return nil, missingField("model")
	}
	if len(f.ColumnsUsed) == 0 {
		return nil, missingField("columns_used")
	}
	if len(f.TestErrors) == 0 {
		return nil, missingField("test_errors")
	}
	if len(f.TestErrorsNA) == 0 {
		return nil, missingField("test_errors_notAbsolute")
	}

	seen := make(map[string]struct{}, len(f.ColumnsUsed))
	for _, col := range f.ColumnsUsed {
		if col == "" {
			return nil, fmt.Errorf("%w: empty column name", ErrArtifactMissing)
		}
		if _, dup := seen[col]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrArtifactMissing, col)
		}
		seen[col] = struct{}{}
	}

	if !stats.AllFinite(f.TestErrors) || !stats.AllFinite(f.TestErrorsNA) {
		return nil, fmt.Errorf("%w: error samples contain non-finite values", ErrArtifactMissing)
	}
	if len(f.TestErrorsNA) >= 2 {
		q := stats.Quantiles(f.TestErrorsNA, 0.05, 0.95)
		if q[0] > q[1] {
			return nil, fmt.Errorf("%w: signed error percentiles inverted (q05=%g > q95=%g)", ErrArtifactMissing, q[0], q[1])
		}
	}

	predictor, err := model.Decode(f.Model, f.ColumnsUsed)
	if err != nil {
		return nil, fmt.Errorf("%w: model: %v", ErrArtifactMissing, err)
	}
	if predictor.NumFeatures() != len(f.ColumnsUsed) {
		return nil, fmt.Errorf("%w: model expects %d features, columns_used has %d",
			ErrArtifactMissing, predictor.NumFeatures(), len(f.ColumnsUsed))
	}

	return &ModelArtifact{
		Category:        cat,
		Model:           predictor,
		ExpectedColumns: f.ColumnsUsed,
		ErrorsAbs:       f.TestErrors,
		ErrorsSigned:    f.TestErrorsNA,
		Checksum:        utils.HashString(string(data)),
	}, nil
}

func missingField(name string) error {
	return fmt.Errorf("%w: missing field %q", ErrArtifactMissing, name)
}
