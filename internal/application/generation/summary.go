package generation

import (
	"context"
	"fmt"
	"strings"

	"z-novel-orchestrator/internal/domain/entity"
	"z-novel-orchestrator/internal/infrastructure/agent"
	"z-novel-orchestrator/pkg/logger"
)

const (
	// defaultSummaryKeep 默认保留最近几章的完整摘要
	defaultSummaryKeep = 3
	// compressedMaxRunes 压缩区摘要的最大字符数
	compressedMaxRunes = 2000
	// chapterSummaryMaxRunes 单章摘要的最大字符数
	chapterSummaryMaxRunes = 400
	// fallbackSummaryRunes 无协调 Agent 时截取章节开头作为摘要的长度
	fallbackSummaryRunes = 200
)

// chapterDigest 单章摘要条目
type chapterDigest struct {
	SeqNum  int
	Title   string
	Summary string
}

// RollingStoryContext 滚动故事上下文
// 最近几章保留完整摘要，更早的章节压缩为一段合并摘要，
// 控制注入提示词的上下文长度不随章节数无限增长
type RollingStoryContext struct {
	compressed string
	recent     []chapterDigest
	keep       int
}

// NewRollingStoryContext 创建滚动上下文，keep 为保留完整摘要的章数
func NewRollingStoryContext(keep int) *RollingStoryContext {
	if keep <= 0 {
		keep = defaultSummaryKeep
	}
	return &RollingStoryContext{keep: keep}
}

// Seed 用已验收章节初始化上下文，chapters 须按序号升序
func (r *RollingStoryContext) Seed(chapters []*entity.ChapterResult) {
	for _, ch := range chapters {
		summary := ch.Summary
		if summary == "" {
			summary = truncateByRunes(ch.ContentText, fallbackSummaryRunes)
		}
		r.Append(ch.SeqNum, ch.Title, summary)
	}
}

// Append 追加一章摘要，超出保留窗口时触发压缩
func (r *RollingStoryContext) Append(seqNum int, title, summary string) {
	r.recent = append(r.recent, chapterDigest{
		SeqNum:  seqNum,
		Title:   title,
		Summary: truncateByRunes(strings.TrimSpace(summary), chapterSummaryMaxRunes),
	})
	if len(r.recent) > r.keep {
		r.compact()
	}
}

// compact 将窗口外的旧章节合并进压缩区
func (r *RollingStoryContext) compact() {
	overflow := len(r.recent) - r.keep
	if overflow <= 0 {
		return
	}

	var b strings.Builder
	if r.compressed != "" {
		b.WriteString(r.compressed)
		b.WriteString("\n")
	}
	for _, digest := range r.recent[:overflow] {
		fmt.Fprintf(&b, "- 第%d章", digest.SeqNum)
		if digest.Title != "" {
			fmt.Fprintf(&b, "《%s》", digest.Title)
		}
		b.WriteString("：")
		b.WriteString(digest.Summary)
		b.WriteString("\n")
	}

	// 压缩区超限时丢弃最旧的行
	merged := strings.TrimSpace(b.String())
	if len([]rune(merged)) > compressedMaxRunes {
		lines := strings.Split(merged, "\n")
		for len(lines) > 1 && len([]rune(strings.Join(lines, "\n"))) > compressedMaxRunes {
			lines = lines[1:]
		}
		merged = truncateByRunes(strings.Join(lines, "\n"), compressedMaxRunes)
	}

	r.compressed = merged
	r.recent = append([]chapterDigest(nil), r.recent[overflow:]...)
}

// SnapshotForPrompt 生成注入提示词的上下文文本
func (r *RollingStoryContext) SnapshotForPrompt() string {
	if r.compressed == "" && len(r.recent) == 0 {
		return ""
	}

	var b strings.Builder
	if r.compressed != "" {
		b.WriteString("早期章节概要：\n")
		b.WriteString(r.compressed)
		b.WriteString("\n\n")
	}
	if len(r.recent) > 0 {
		b.WriteString("最近章节摘要：\n")
		for _, digest := range r.recent {
			fmt.Fprintf(&b, "第%d章", digest.SeqNum)
			if digest.Title != "" {
				fmt.Fprintf(&b, "《%s》", digest.Title)
			}
			b.WriteString("：")
			b.WriteString(digest.Summary)
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String())
}

// truncateByRunes 按字符数截断，保证多字节字符不被截断
func truncateByRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// Summarizer 章节摘要生成器
// 优先使用协调 Agent 生成情节摘要，缺失或出错时退化为截取章节开头
type Summarizer struct {
	registry *agent.Registry
}

// NewSummarizer 创建摘要生成器
func NewSummarizer(registry *agent.Registry) *Summarizer {
	return &Summarizer{registry: registry}
}

// Summarize 生成章节摘要
func (s *Summarizer) Summarize(ctx context.Context, project *entity.Project, chapter *entity.ChapterResult) string {
	coordinator, ok := s.registry.Get(entity.RoleCoordinator)
	if !ok {
		return truncateByRunes(chapter.ContentText, fallbackSummaryRunes)
	}

	outcome, err := coordinator.Complete(ctx, coordinatorSystemPrompt, buildSummaryPrompt(project, chapter))
	if err != nil {
		logger.FromContext(ctx).Warn("chapter summarization failed, falling back to excerpt",
			"project_id", project.ID,
			"seq_num", chapter.SeqNum,
			"error", err,
		)
		return truncateByRunes(chapter.ContentText, fallbackSummaryRunes)
	}

	summary := strings.TrimSpace(outcome.Text)
	if summary == "" {
		return truncateByRunes(chapter.ContentText, fallbackSummaryRunes)
	}
	return truncateByRunes(summary, chapterSummaryMaxRunes)
}
