package pipeline

import "testing"

func testScales() ScaleDefaults {
	return ScaleDefaults{"simple": 5, "moderate": 15, "complex": 30}
}

func TestPlanChunksQuantity(t *testing.T) {
	spec := &ChunkSpec{
		SourceStage:   "overview",
		QuantityField: "district_count",
		ScaleField:    "complexity",
		Label:         "district",
	}

	tests := []struct {
		name       string
		fields     map[string]any
		wantChunk  bool
		wantChunks int
	}{
		{
			name:       "numeric quantity",
			fields:     map[string]any{"district_count": float64(12)},
			wantChunk:  true,
			wantChunks: 12,
		},
		{
			name:       "numeric string coerces",
			fields:     map[string]any{"district_count": "12"},
			wantChunk:  true,
			wantChunks: 12,
		},
		{
			name:      "quantity of one stays single call",
			fields:    map[string]any{"district_count": float64(1)},
			wantChunk: false,
		},
		{
			name:      "quantity of zero stays single call",
			fields:    map[string]any{"district_count": float64(0)},
			wantChunk: false,
		},
		{
			name:      "unparseable quantity without scale stays single call",
			fields:    map[string]any{"district_count": "a dozen"},
			wantChunk: false,
		},
		{
			name:       "missing quantity falls back to scale keyword",
			fields:     map[string]any{"complexity": "complex"},
			wantChunk:  true,
			wantChunks: 30,
		},
		{
			name:       "unparseable quantity falls back to scale keyword",
			fields:     map[string]any{"district_count": "lots", "complexity": "moderate"},
			wantChunk:  true,
			wantChunks: 15,
		},
		{
			name:       "quantity wins over scale keyword",
			fields:     map[string]any{"district_count": float64(5), "complexity": "moderate"},
			wantChunk:  true,
			wantChunks: 5,
		},
		{
			name:      "unknown scale keyword stays single call",
			fields:    map[string]any{"complexity": "gargantuan"},
			wantChunk: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pctx := NewContext(Request{Deliverable: "location"})
			pctx.SetResult("overview", StageResult{Fields: tc.fields})

			plan := PlanChunks(pctx, spec, testScales())
			if plan.ShouldChunk != tc.wantChunk {
				t.Fatalf("ShouldChunk = %v, want %v", plan.ShouldChunk, tc.wantChunk)
			}
			if tc.wantChunk && plan.TotalChunks != tc.wantChunks {
				t.Fatalf("TotalChunks = %d, want %d", plan.TotalChunks, tc.wantChunks)
			}
		})
	}
}

func TestPlanChunksChunkSize(t *testing.T) {
	spec := &ChunkSpec{
		SourceStage:   "overview",
		QuantityField: "encounter_count",
		ChunkSize:     4,
		Label:         "encounter",
	}

	pctx := NewContext(Request{Deliverable: "adventure"})
	pctx.SetResult("overview", StageResult{Fields: map[string]any{"encounter_count": float64(10)}})

	plan := PlanChunks(pctx, spec, testScales())
	if !plan.ShouldChunk {
		t.Fatal("expected a chunked plan")
	}
	if plan.TotalChunks != 3 {
		t.Fatalf("TotalChunks = %d, want 3", plan.TotalChunks)
	}
	if plan.ChunkSize != 4 {
		t.Fatalf("ChunkSize = %d, want 4", plan.ChunkSize)
	}
	if plan.Label != "encounter" {
		t.Fatalf("Label = %q, want %q", plan.Label, "encounter")
	}
}

func TestPlanChunksMissingSourceStage(t *testing.T) {
	spec := &ChunkSpec{SourceStage: "overview", QuantityField: "count"}
	pctx := NewContext(Request{Deliverable: "location"})

	plan := PlanChunks(pctx, spec, testScales())
	if plan.ShouldChunk {
		t.Fatal("expected a single-call plan when the source stage is absent")
	}
}

func TestPlanChunksNilSpec(t *testing.T) {
	pctx := NewContext(Request{Deliverable: "location"})
	if plan := PlanChunks(pctx, nil, testScales()); plan.ShouldChunk {
		t.Fatal("expected a single-call plan without a chunk spec")
	}
}
