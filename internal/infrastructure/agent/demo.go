// Package agent 提供多智能体 LLM 客户端
package agent

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"z-novel-orchestrator/internal/domain/entity"
)

// DemoWriter 演示模式写手，不调用外部 LLM
// 按提示词确定性地生成占位章节文本
type DemoWriter struct{}

// NewDemoWriter 创建演示写手
func NewDemoWriter() *DemoWriter {
	return &DemoWriter{}
}

// Role 返回角色
func (w *DemoWriter) Role() entity.AgentRole {
	return entity.RoleWriter
}

// Provider 返回提供商名称
func (w *DemoWriter) Provider() string {
	return "demo"
}

// Model 返回模型名称
func (w *DemoWriter) Model() string {
	return "template-v1"
}

var demoOpenings = []string{
	"晨光穿过薄雾，落在尚未醒来的街道上。",
	"夜色深沉，远处传来断断续续的钟声。",
	"风从山谷间掠过，带来一丝潮湿的凉意。",
	"雨停了，屋檐上的水珠仍在一滴一滴地坠落。",
}

// Complete 生成模板章节文本
func (w *DemoWriter) Complete(ctx context.Context, systemPrompt, userPrompt string) (*Outcome, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	h := fnv.New32a()
	h.Write([]byte(userPrompt))
	seed := h.Sum32()

	var sb strings.Builder
	sb.WriteString(demoOpenings[int(seed)%len(demoOpenings)])
	sb.WriteString("\n\n")
	for i := 0; i < 6; i++ {
		sb.WriteString(fmt.Sprintf(
			"段落 %d：故事按既定的脉络向前推进，人物在各自的选择中留下痕迹。"+
				"这一段承接前文的伏笔，同时为下一幕埋下新的线索。", i+1))
		sb.WriteString("\n\n")
	}
	sb.WriteString("章节在一个悬而未决的时刻收束，等待下一章揭晓。")

	text := sb.String()
	return &Outcome{
		Text:             text,
		Provider:         w.Provider(),
		Model:            w.Model(),
		PromptTokens:     len([]rune(userPrompt)) / 4,
		CompletionTokens: len([]rune(text)) / 4,
		Duration:         time.Millisecond,
	}, nil
}
