package reconcile

import (
	"testing"

	"github.com/sonar-solutions/cloudvoyager/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestFingerprintOf(t *testing.T) {
	testCases := []struct {
		name    string
		finding models.Finding
		want    Fingerprint
		wantOK  bool
	}{
		{
			name:    "Direct line field",
			finding: models.Finding{Rule: "go:S1067", Path: "src/app.go", Line: 42},
			want:    Fingerprint{Rule: "go:S1067", Path: "src/app.go", Line: 42},
			wantOK:  true,
		},
		{
			name: "Line from text range when direct line absent",
			finding: models.Finding{
				Rule:      "go:S1067",
				Path:      "src/app.go",
				TextRange: &models.TextRange{StartLine: 17},
			},
			want:   Fingerprint{Rule: "go:S1067", Path: "src/app.go", Line: 17},
			wantOK: true,
		},
		{
			name:    "Empty rule excluded from matching",
			finding: models.Finding{Rule: "", Path: "src/app.go", Line: 1},
			wantOK:  false,
		},
		{
			name:    "Empty path excluded from matching",
			finding: models.Finding{Rule: "go:S1067", Path: "", Line: 1},
			wantOK:  false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fp, ok := fingerprintOf(tc.finding)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.want, fp)
			}
		})
	}
}

func TestMatchFindingsOneToOne(t *testing.T) {
	source := []models.Finding{
		{Key: "s1", Rule: "r1", Path: "a.go", Line: 10},
		{Key: "s2", Rule: "r2", Path: "b.go", Line: 20},
	}
	dest := []models.Finding{
		{Key: "d1", Rule: "r1", Path: "a.go", Line: 10},
		{Key: "d2", Rule: "r2", Path: "b.go", Line: 20},
		{Key: "d3", Rule: "r3", Path: "c.go", Line: 30},
	}

	pairs := matchFindings(source, dest)

	assert.Len(t, pairs, 2)
	assert.Equal(t, "d1", pairs[0].dest.Key)
	assert.Equal(t, "d2", pairs[1].dest.Key)
}

// Colliding fingerprints pair by arrival order on both sides. This is a
// known limitation of structural matching, kept for compatibility: the
// pairing is a heuristic, not a strong identity guarantee.
func TestMatchFindingsCollisionTieBreak(t *testing.T) {
	source := []models.Finding{
		{Key: "s1", Rule: "r1", Path: "a.go", Line: 10},
		{Key: "s2", Rule: "r1", Path: "a.go", Line: 10},
	}
	dest := []models.Finding{
		{Key: "d1", Rule: "r1", Path: "a.go", Line: 10},
		{Key: "d2", Rule: "r1", Path: "a.go", Line: 10},
		{Key: "d3", Rule: "r1", Path: "a.go", Line: 10},
	}

	pairs := matchFindings(source, dest)

	// Exactly N matches for N source findings against M >= N candidates,
	// and no destination finding is consumed twice.
	assert.Len(t, pairs, 2)
	assert.Equal(t, "s1", pairs[0].source.Key)
	assert.Equal(t, "d1", pairs[0].dest.Key)
	assert.Equal(t, "s2", pairs[1].source.Key)
	assert.Equal(t, "d2", pairs[1].dest.Key)
}

func TestMatchFindingsMoreSourcesThanCandidates(t *testing.T) {
	source := []models.Finding{
		{Key: "s1", Rule: "r1", Path: "a.go", Line: 10},
		{Key: "s2", Rule: "r1", Path: "a.go", Line: 10},
		{Key: "s3", Rule: "r1", Path: "a.go", Line: 10},
	}
	dest := []models.Finding{
		{Key: "d1", Rule: "r1", Path: "a.go", Line: 10},
	}

	pairs := matchFindings(source, dest)

	// Unmatched source findings are simply not synced.
	assert.Len(t, pairs, 1)
	assert.Equal(t, "s1", pairs[0].source.Key)
}

func TestMatchFindingsSkipsUnidentifiable(t *testing.T) {
	source := []models.Finding{
		{Key: "s1", Rule: "", Path: "a.go", Line: 10},
		{Key: "s2", Rule: "r1", Path: "", Line: 10},
	}
	dest := []models.Finding{
		{Key: "d1", Rule: "r1", Path: "a.go", Line: 10},
		{Key: "d2", Rule: "", Path: "a.go", Line: 10},
	}

	pairs := matchFindings(source, dest)
	assert.Empty(t, pairs)
}
