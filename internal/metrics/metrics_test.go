package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	c := New()
	if c == nil {
		t.Fatal("New() returned nil")
	}
}

func TestCollector_ScanCounters(t *testing.T) {
	c := New()

	c.RecordFilesDiscovered(4)
	c.RecordFileScanned(100)
	c.RecordFileScanned(50)
	c.RecordFileSkipped("permission denied")

	snap := c.Snapshot()
	if snap.FilesDiscovered != 4 {
		t.Errorf("FilesDiscovered = %d, want 4", snap.FilesDiscovered)
	}
	if snap.FilesScanned != 2 {
		t.Errorf("FilesScanned = %d, want 2", snap.FilesScanned)
	}
	if snap.BytesScanned != 150 {
		t.Errorf("BytesScanned = %d, want 150", snap.BytesScanned)
	}
	if snap.FilesSkipped != 1 {
		t.Errorf("FilesSkipped = %d, want 1", snap.FilesSkipped)
	}
	if snap.SkipReasons["permission denied"] != 1 {
		t.Errorf("SkipReasons = %v", snap.SkipReasons)
	}
}

func TestCollector_RecordObservation(t *testing.T) {
	c := New()

	c.RecordObservation("fetch")
	c.RecordObservation("fetch")
	c.RecordObservation("axios.method")

	snap := c.Snapshot()
	if snap.Observations != 3 {
		t.Errorf("Observations = %d, want 3", snap.Observations)
	}
	if snap.PatternCounts["fetch"] != 2 {
		t.Errorf("PatternCounts[fetch] = %d, want 2", snap.PatternCounts["fetch"])
	}
	if snap.PatternCounts["axios.method"] != 1 {
		t.Errorf("PatternCounts[axios.method] = %d, want 1", snap.PatternCounts["axios.method"])
	}
}

func TestCollector_BuildCounters(t *testing.T) {
	c := New()

	c.RecordEndpoint()
	c.RecordEndpoint()
	c.RecordDuplicate()
	c.RecordUnresolved()

	snap := c.Snapshot()
	if snap.Endpoints != 2 || snap.Duplicates != 1 || snap.Unresolved != 1 {
		t.Errorf("Endpoints/Duplicates/Unresolved = %d/%d/%d, want 2/1/1",
			snap.Endpoints, snap.Duplicates, snap.Unresolved)
	}
}

func TestCollector_RecordFinding(t *testing.T) {
	c := New()

	c.RecordFinding("missing_in_openapi")
	c.RecordFinding("missing_in_openapi")
	c.RecordFinding("quality")

	snap := c.Snapshot()
	if snap.TotalFindings() != 3 {
		t.Errorf("TotalFindings() = %d, want 3", snap.TotalFindings())
	}
	if snap.FindingCounts["missing_in_openapi"] != 2 {
		t.Errorf("FindingCounts = %v", snap.FindingCounts)
	}
}

func TestCollector_RecordStage(t *testing.T) {
	c := New()

	c.RecordStage("scan", 10*time.Millisecond)
	c.RecordStage("scan", 5*time.Millisecond)

	snap := c.Snapshot()
	if snap.StageDurations["scan"] != 15*time.Millisecond {
		t.Errorf("StageDurations[scan] = %v, want 15ms", snap.StageDurations["scan"])
	}
}

func TestCollector_MockCounters(t *testing.T) {
	tests := []struct {
		status int
		class  string
	}{
		{200, "2xx"},
		{201, "2xx"},
		{401, "4xx"},
		{429, "4xx"},
		{500, "5xx"},
	}

	c := New()
	for _, tt := range tests {
		c.RecordMockRequest(tt.status)
	}
	c.RecordThrottled()

	snap := c.Snapshot()
	if snap.MockRequests != 5 {
		t.Errorf("MockRequests = %d, want 5", snap.MockRequests)
	}
	if snap.StatusClasses["2xx"] != 2 || snap.StatusClasses["4xx"] != 2 || snap.StatusClasses["5xx"] != 1 {
		t.Errorf("StatusClasses = %v", snap.StatusClasses)
	}
	if snap.MockThrottled != 1 {
		t.Errorf("MockThrottled = %d, want 1", snap.MockThrottled)
	}
}

func TestCollector_Reset(t *testing.T) {
	c := New()

	c.RecordFileScanned(10)
	c.RecordObservation("fetch")
	c.RecordFinding("quality")
	c.RecordStage("build", time.Second)

	c.Reset()

	snap := c.Snapshot()
	if snap.FilesScanned != 0 || snap.Observations != 0 {
		t.Errorf("counters not reset: %+v", snap)
	}
	if len(snap.PatternCounts) != 0 || len(snap.FindingCounts) != 0 || len(snap.StageDurations) != 0 {
		t.Error("maps should be empty after Reset")
	}
}

func TestSnapshot_SkipRate(t *testing.T) {
	tests := []struct {
		name       string
		discovered int64
		skipped    int64
		want       float64
	}{
		{"no files", 0, 0, 0},
		{"none skipped", 10, 0, 0},
		{"half skipped", 10, 5, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Snapshot{FilesDiscovered: tt.discovered, FilesSkipped: tt.skipped}
			if got := s.SkipRate(); got != tt.want {
				t.Errorf("SkipRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSnapshot_Summary(t *testing.T) {
	c := New()
	c.RecordFileScanned(1)
	c.RecordEndpoint()

	summary := c.Snapshot().Summary()
	if summary["files_scanned"] != int64(1) {
		t.Errorf("summary[files_scanned] = %v, want 1", summary["files_scanned"])
	}
	if summary["endpoints"] != int64(1) {
		t.Errorf("summary[endpoints] = %v, want 1", summary["endpoints"])
	}
}

func TestSetGlobal(t *testing.T) {
	original := Global()
	defer SetGlobal(original)

	newCollector := New()
	SetGlobal(newCollector)

	if Global() != newCollector {
		t.Error("SetGlobal() did not set the global collector")
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordFileScanned(1)
				c.RecordObservation("fetch")
				c.RecordFinding("quality")
				c.RecordMockRequest(200)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.FilesScanned != 1000 {
		t.Errorf("FilesScanned = %d, want 1000", snap.FilesScanned)
	}
	if snap.PatternCounts["fetch"] != 1000 {
		t.Errorf("PatternCounts[fetch] = %d, want 1000", snap.PatternCounts["fetch"])
	}
	if snap.FindingCounts["quality"] != 1000 {
		t.Errorf("FindingCounts[quality] = %d, want 1000", snap.FindingCounts["quality"])
	}
}

func TestSnapshot_Uptime(t *testing.T) {
	c := New()
	time.Sleep(10 * time.Millisecond)
	snap := c.Snapshot()

	if snap.Uptime < 10*time.Millisecond {
		t.Errorf("Uptime = %v, should be >= 10ms", snap.Uptime)
	}
}
