package progress

import "testing"

func TestTrackerPublishAndPoll(t *testing.T) {
	tr := NewTracker()

	if _, ok := tr.Poll("missing"); ok {
		t.Error("unknown session should report absent")
	}

	tr.Publish("job1", "Saving file...", 2)
	tr.Publish("job1", "Extracting audio...", 3)

	s, ok := tr.Poll("job1")
	if !ok {
		t.Fatal("expected status for job1")
	}
	if s.Status != "Extracting audio..." || s.StepID != 3 {
		t.Errorf("unexpected status %+v", s)
	}
}

func TestTrackerDrainIfTerminal(t *testing.T) {
	tr := NewTracker()

	tr.Publish("job1", "Transcribing...", 6)
	if tr.DrainIfTerminal("job1") {
		t.Error("non-terminal status must not drain")
	}
	if _, ok := tr.Poll("job1"); !ok {
		t.Error("non-terminal status was removed")
	}

	tr.Publish("job1", "Completed", StepComplete)
	if !tr.DrainIfTerminal("job1") {
		t.Error("terminal status should drain")
	}
	if _, ok := tr.Poll("job1"); ok {
		t.Error("drained session still visible")
	}
	if tr.DrainIfTerminal("job1") {
		t.Error("second drain should report false")
	}
}

func TestTrackerDrainsErrorState(t *testing.T) {
	tr := NewTracker()

	tr.Publish("job1", "Error", StepError)
	if !tr.DrainIfTerminal("job1") {
		t.Error("error status should drain")
	}
}

func TestStatusTerminal(t *testing.T) {
	if (Status{StepID: 5}).Terminal() {
		t.Error("mid-pipeline step reported terminal")
	}
	if !(Status{StepID: StepError}).Terminal() {
		t.Error("error step not terminal")
	}
	if !(Status{StepID: StepComplete}).Terminal() {
		t.Error("complete step not terminal")
	}
}
