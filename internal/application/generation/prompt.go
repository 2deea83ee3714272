// Package generation 提供小说生成编排：章节流水线、质量闸门与任务调度
package generation

import (
	"fmt"
	"strings"

	"z-novel-orchestrator/internal/domain/entity"
)

// writerSystemPrompt 返回写手 Agent 的系统提示词
func writerSystemPrompt(genre entity.Genre) string {
	if genre == "" {
		return "你是一个专业的小说作者。请创作高质量的小说章节。"
	}
	return fmt.Sprintf("你是一个专业的小说作者，擅长写作%s类型的小说。请创作高质量的小说章节。", genre)
}

// monitorSystemPrompt 质量监察 Agent 的系统提示词
const monitorSystemPrompt = "你是一个严格的小说质量审校员。你只输出 JSON，不输出任何其他内容。"

// coordinatorSystemPrompt 协调 Agent 的系统提示词
const coordinatorSystemPrompt = "你是一个专业的小说情节策划师，擅长制定引人入胜的故事结构和大纲。"

// editorSystemPrompt 编辑 Agent 的系统提示词
const editorSystemPrompt = "你是一个资深的小说编辑，擅长在不改变情节的前提下润色文字、修正语病。"

// researcherSystemPrompt 调研 Agent 的系统提示词
const researcherSystemPrompt = "你是一个小说背景设定研究员，擅长为故事构建可信的世界观、人物和时代背景。"

// buildChapterPrompt 构建首次生成章节的提示词
func buildChapterPrompt(project *entity.Project, chapter *entity.ChapterResult, storyContext string, targetWords int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "请为小说《%s》撰写第%d章。\n\n", project.Title, chapter.SeqNum)

	b.WriteString("小说基本信息：\n")
	if project.Genre != "" {
		fmt.Fprintf(&b, "- 类型：%s\n", project.Genre)
	}
	if project.Premise != "" {
		fmt.Fprintf(&b, "- 故事前提：%s\n", project.Premise)
	}
	fmt.Fprintf(&b, "- 总章节数：%d\n", project.ExpectedChapters)
	if project.Settings != nil {
		if project.Settings.WritingStyle != "" {
			fmt.Fprintf(&b, "- 写作风格：%s\n", project.Settings.WritingStyle)
		}
		if project.Settings.POV != "" {
			fmt.Fprintf(&b, "- 叙事视角：%s\n", project.Settings.POV)
		}
	}

	if chapter.Title != "" {
		fmt.Fprintf(&b, "\n本章标题：%s\n", chapter.Title)
	}
	if chapter.Outline != "" {
		fmt.Fprintf(&b, "\n本章大纲：\n%s\n", chapter.Outline)
	}

	if storyContext != "" {
		fmt.Fprintf(&b, "\n前文进展：\n%s\n", storyContext)
	}

	fmt.Fprintf(&b, `
请撰写第%d章，要求：
1. 内容连贯，符合前文设定
2. 包含适当的对话、动作和心理描写
3. 推进主要情节发展
4. 字数控制在%d字左右
5. 用中文写作，语言生动自然

请直接开始写章节内容，不需要章节标题。
`, chapter.SeqNum, targetWords)

	return b.String()
}

// buildRegeneratePrompt 构建重写章节的提示词，携带上一稿与质量反馈
func buildRegeneratePrompt(project *entity.Project, chapter *entity.ChapterResult, storyContext string, targetWords int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "请重新生成小说《%s》的第%d章。\n\n", project.Title, chapter.SeqNum)

	if project.Genre != "" {
		fmt.Fprintf(&b, "小说类型：%s\n", project.Genre)
	}
	if chapter.Outline != "" {
		fmt.Fprintf(&b, "本章大纲：\n%s\n", chapter.Outline)
	}
	if storyContext != "" {
		fmt.Fprintf(&b, "\n前文进展：\n%s\n", storyContext)
	}

	fmt.Fprintf(&b, "\n原有章节内容：\n%s\n", chapter.ContentText)

	b.WriteString(`
重新生成要求：
1. 保持原有的基本情节走向
2. 改进文笔和叙述技巧
3. 增强人物刻画和对话
4. 提升整体可读性
`)

	if chapter.Verdict != nil {
		if chapter.Verdict.Feedback != "" {
			fmt.Fprintf(&b, "\n上一稿的审校反馈：\n%s\n", chapter.Verdict.Feedback)
		}
		if len(chapter.Verdict.Scores) > 0 {
			b.WriteString("\n上一稿各维度评分（满分100）：\n")
			for _, criterion := range entity.AllCriteria() {
				if score, ok := chapter.Verdict.Scores[criterion]; ok {
					fmt.Fprintf(&b, "- %s：%.0f\n", criterion, score)
				}
			}
		}
	}

	fmt.Fprintf(&b, "\n字数控制在%d字左右。请直接开始写章节内容，不需要章节标题。\n", targetWords)

	return b.String()
}

// buildEditPrompt 构建编辑润色提示词
func buildEditPrompt(project *entity.Project, chapter *entity.ChapterResult, draft string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "请润色小说《%s》第%d章的草稿。\n\n", project.Title, chapter.SeqNum)
	if project.Settings != nil && project.Settings.WritingStyle != "" {
		fmt.Fprintf(&b, "写作风格：%s\n\n", project.Settings.WritingStyle)
	}

	fmt.Fprintf(&b, "草稿内容：\n%s\n", draft)

	b.WriteString(`
润色要求：
1. 不改变情节走向和人物行为
2. 修正语病、错别字和生硬的表达
3. 优化对话的自然度和叙述节奏
4. 篇幅与原稿大体相当

只输出润色后的完整章节正文，不要输出说明文字。
`)

	return b.String()
}

// buildEvaluatePrompt 构建质量评估提示词，要求模型输出固定结构的 JSON
func buildEvaluatePrompt(project *entity.Project, chapter *entity.ChapterResult, storyContext string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "请评估小说《%s》第%d章的质量。\n\n", project.Title, chapter.SeqNum)

	if storyContext != "" {
		fmt.Fprintf(&b, "前文进展（用于判断一致性）：\n%s\n\n", storyContext)
	}

	fmt.Fprintf(&b, "章节内容：\n%s\n\n", chapter.ContentText)

	b.WriteString(`请从以下四个维度打分（0-100 的整数）并给出改进建议：
- coherence：内容连贯性，情节是否顺畅衔接
- grammar：语言质量，有无语病和错别字
- creativity：创意与吸引力
- consistency：与前文设定的一致性

只输出如下格式的 JSON，不要输出其他内容：
{"coherence": 0, "grammar": 0, "creativity": 0, "consistency": 0, "feedback": "改进建议"}
`)

	return b.String()
}

// buildResearchPrompt 构建背景设定调研提示词
func buildResearchPrompt(project *entity.Project) string {
	var b strings.Builder

	fmt.Fprintf(&b, "请为小说《%s》整理背景设定参考资料。\n\n", project.Title)
	if project.Genre != "" {
		fmt.Fprintf(&b, "小说类型：%s\n", project.Genre)
	}
	if project.Premise != "" {
		fmt.Fprintf(&b, "故事前提：%s\n", project.Premise)
	}

	b.WriteString(`
请围绕故事前提，给出不超过500字的设定要点，包括：
1. 世界观与时代背景
2. 主要人物的身份与动机
3. 可能的核心冲突

只输出设定要点本身，不要输出其他内容。
`)

	return b.String()
}

// buildPlanPrompt 构建章节大纲规划提示词
func buildPlanPrompt(project *entity.Project, research string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "请为小说《%s》制定共%d章的章节大纲。\n\n", project.Title, project.ExpectedChapters)
	if project.Genre != "" {
		fmt.Fprintf(&b, "小说类型：%s\n", project.Genre)
	}
	if project.Premise != "" {
		fmt.Fprintf(&b, "故事前提：%s\n", project.Premise)
	}
	if research != "" {
		fmt.Fprintf(&b, "\n背景设定参考：\n%s\n", research)
	}

	fmt.Fprintf(&b, `
要求：
1. 结构完整，有开端、发展、高潮和结局
2. 每章有明确的情节推进目标
3. 章节之间衔接自然

只输出如下格式的 JSON 数组，共%d项，不要输出其他内容：
[{"index": 1, "title": "章节标题", "outline": "本章情节概要", "key_points": ["要点1", "要点2"]}]
`, project.ExpectedChapters)

	return b.String()
}

// buildSummaryPrompt 构建章节摘要提示词
func buildSummaryPrompt(project *entity.Project, chapter *entity.ChapterResult) string {
	return fmt.Sprintf(`请将小说《%s》第%d章的内容概括为不超过200字的情节摘要，保留关键人物动向与伏笔。

章节内容：
%s

只输出摘要本身，不要输出其他内容。`, project.Title, chapter.SeqNum, chapter.ContentText)
}
