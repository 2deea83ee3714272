package generation

import (
	"strings"
	"testing"

	"z-novel-orchestrator/internal/domain/entity"
)

func TestRollingStoryContextWindow(t *testing.T) {
	story := NewRollingStoryContext(3)

	for seq := 1; seq <= 5; seq++ {
		story.Append(seq, "", "第"+string(rune('0'+seq))+"章发生的事")
	}

	snapshot := story.SnapshotForPrompt()
	if !strings.Contains(snapshot, "早期章节概要") {
		t.Error("snapshot should contain compressed section after window overflow")
	}
	if !strings.Contains(snapshot, "最近章节摘要") {
		t.Error("snapshot should contain recent section")
	}
	// 最近三章保留完整摘要
	for seq := 3; seq <= 5; seq++ {
		want := "第" + string(rune('0'+seq)) + "章发生的事"
		if !strings.Contains(snapshot, want) {
			t.Errorf("snapshot should keep recent chapter %d summary", seq)
		}
	}
	if len(story.recent) != 3 {
		t.Errorf("recent window = %d, want 3", len(story.recent))
	}
}

func TestRollingStoryContextEmpty(t *testing.T) {
	story := NewRollingStoryContext(3)
	if got := story.SnapshotForPrompt(); got != "" {
		t.Errorf("SnapshotForPrompt() = %q, want empty", got)
	}
}

func TestRollingStoryContextSeed(t *testing.T) {
	story := NewRollingStoryContext(3)
	story.Seed([]*entity.ChapterResult{
		{SeqNum: 1, Title: "开端", Summary: "主角登场"},
		{SeqNum: 2, Summary: ""}, // 无摘要时截取正文
	})
	snapshot := story.SnapshotForPrompt()
	if !strings.Contains(snapshot, "主角登场") {
		t.Error("seeded summary missing from snapshot")
	}
	if !strings.Contains(snapshot, "《开端》") {
		t.Error("chapter title missing from snapshot")
	}
}

func TestRollingStoryContextCompressedTruncation(t *testing.T) {
	story := NewRollingStoryContext(1)
	long := strings.Repeat("情节", 300)
	for seq := 1; seq <= 10; seq++ {
		story.Append(seq, "", long)
	}
	if runes := len([]rune(story.compressed)); runes > compressedMaxRunes {
		t.Errorf("compressed section = %d runes, want <= %d", runes, compressedMaxRunes)
	}
}

func TestTruncateByRunes(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"你好世界", 2, "你好"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		if got := truncateByRunes(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateByRunes(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestSummarizerFallsBackWithoutCoordinator(t *testing.T) {
	summarizer := NewSummarizer(newTestRegistry(map[entity.AgentRole]*fakeAgent{}))
	project := entity.NewProject("测试", "", entity.GenreFantasy, entity.LengthShort)
	chapter := &entity.ChapterResult{SeqNum: 1, ContentText: strings.Repeat("正文内容。", 100)}

	summary := summarizer.Summarize(t.Context(), project, chapter)
	if summary == "" {
		t.Fatal("fallback summary should not be empty")
	}
	if len([]rune(summary)) > fallbackSummaryRunes {
		t.Errorf("fallback summary = %d runes, want <= %d", len([]rune(summary)), fallbackSummaryRunes)
	}
}

func TestSummarizerUsesCoordinator(t *testing.T) {
	registry := newTestRegistry(map[entity.AgentRole]*fakeAgent{
		entity.RoleCoordinator: {role: entity.RoleCoordinator, responses: []string{"主角夺回了家族宝剑。"}},
	})
	summarizer := NewSummarizer(registry)
	project := entity.NewProject("测试", "", entity.GenreFantasy, entity.LengthShort)
	chapter := &entity.ChapterResult{SeqNum: 1, ContentText: "很长的正文"}

	summary := summarizer.Summarize(t.Context(), project, chapter)
	if summary != "主角夺回了家族宝剑。" {
		t.Errorf("Summarize() = %q, want coordinator output", summary)
	}
}
