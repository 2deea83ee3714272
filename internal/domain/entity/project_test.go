package entity

import (
	"testing"
)

func TestNovelLengthExpectedChapters(t *testing.T) {
	tests := []struct {
		length NovelLength
		want   int
	}{
		{LengthShort, 5},
		{LengthMedium, 15},
		{LengthLong, 30},
		{LengthEpic, 50},
		{NovelLength("unknown"), 15},
	}

	for _, tt := range tests {
		if got := tt.length.ExpectedChapters(); got != tt.want {
			t.Errorf("ExpectedChapters(%s) = %d, want %d", tt.length, got, tt.want)
		}
	}
}

func TestNewProjectDefaults(t *testing.T) {
	p := NewProject("星际远航", "premise", GenreScienceFiction, NovelLength("bogus"))
	if p.Length != LengthMedium {
		t.Errorf("invalid length should fall back to medium, got %s", p.Length)
	}
	if p.ExpectedChapters != 15 {
		t.Errorf("expected chapters = %d, want 15", p.ExpectedChapters)
	}
	if p.Status != ProjectStatusDraft {
		t.Errorf("status = %s, want draft", p.Status)
	}
}

func TestProjectProgress(t *testing.T) {
	p := NewProject("t", "", GenreFantasy, LengthShort)
	if p.Progress() != 0 {
		t.Errorf("fresh project progress = %v, want 0", p.Progress())
	}

	p.RecordChapterAccepted(2000)
	p.RecordChapterAccepted(1800)
	if got := p.Progress(); got != 40 {
		t.Errorf("progress after 2/5 chapters = %v, want 40", got)
	}
	if p.CurrentWordCount != 3800 {
		t.Errorf("word count = %d, want 3800", p.CurrentWordCount)
	}
}

func TestProjectFailAndRestart(t *testing.T) {
	p := NewProject("t", "", GenreMystery, LengthShort)
	p.StartGeneration()
	p.Fail("writer unavailable")

	if p.Status != ProjectStatusFailed {
		t.Fatalf("status = %s, want failed", p.Status)
	}
	if !p.IsStartable() {
		t.Error("failed project should be restartable")
	}

	p.StartGeneration()
	if p.FailureReason != "" {
		t.Error("restart should clear failure reason")
	}
}

func TestJobLifecycle(t *testing.T) {
	j := NewGenerationJob("proj-1", 5, nil)
	if !j.IsActive() {
		t.Error("pending job should be active")
	}

	j.Start()
	j.AdvanceChapter(3)
	if j.Progress != 40 {
		t.Errorf("progress at chapter 3/5 = %d, want 40", j.Progress)
	}

	j.Complete()
	if !j.IsTerminal() {
		t.Error("completed job should be terminal")
	}
	if j.Progress != 100 {
		t.Errorf("completed progress = %d, want 100", j.Progress)
	}
}
