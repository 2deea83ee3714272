package agent

import (
	"testing"
)

func TestParseChapterPlansPlainArray(t *testing.T) {
	raw := `[
		{"index": 1, "title": "流亡开始", "outline": "主角被迫离开母星", "key_points": ["告别", "追兵"]},
		{"index": 2, "title": "星港相遇", "outline": "结识走私船长"}
	]`

	plans, err := ParseChapterPlans(raw)
	if err != nil {
		t.Fatalf("ParseChapterPlans: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("plans = %d, want 2", len(plans))
	}
	if plans[0].Title != "流亡开始" || plans[0].Index != 1 {
		t.Errorf("plan[0] = %+v", plans[0])
	}
	if len(plans[0].KeyPoints) != 2 {
		t.Errorf("key points = %v, want 2 entries", plans[0].KeyPoints)
	}
	if plans[1].Outline != "结识走私船长" {
		t.Errorf("plan[1].Outline = %q", plans[1].Outline)
	}
}

func TestParseChapterPlansFencedBlock(t *testing.T) {
	raw := "以下是章节大纲：\n```json\n[{\"index\": 1, \"title\": \"第一章\", \"outline\": \"开端\"}]\n```"

	plans, err := ParseChapterPlans(raw)
	if err != nil {
		t.Fatalf("ParseChapterPlans: %v", err)
	}
	if len(plans) != 1 || plans[0].Title != "第一章" {
		t.Errorf("plans = %+v", plans)
	}
}

func TestParseChapterPlansFillsMissingIndex(t *testing.T) {
	raw := `[{"title": "甲"}, {"title": "乙"}]`

	plans, err := ParseChapterPlans(raw)
	if err != nil {
		t.Fatalf("ParseChapterPlans: %v", err)
	}
	if plans[0].Index != 1 || plans[1].Index != 2 {
		t.Errorf("indexes = %d, %d, want 1, 2", plans[0].Index, plans[1].Index)
	}
}

func TestParseChapterPlansRejectsNonArray(t *testing.T) {
	if _, err := ParseChapterPlans("抱歉，我无法完成这个任务。"); err == nil {
		t.Error("ParseChapterPlans should fail without a JSON array")
	}
	if _, err := ParseChapterPlans("[]"); err == nil {
		t.Error("ParseChapterPlans should fail on empty array")
	}
}
