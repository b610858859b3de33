package oracle

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/lasersoldier/Turtle-Soup/internal/models"
)

// Rule maps question keywords onto a canned reply.
type Rule struct {
	Keywords []string
	Reply    string
}

// Offline answers from keyword rules without any network access. It is
// deterministic: the same question always gets the same reply.
type Offline struct {
	RevealKeywords []string
	Rules          map[models.Language][]Rule
	Fallbacks      map[models.Language][]string
}

var defaultRules = map[models.Language][]Rule{
	models.LanguageEN: {
		{Keywords: []string{"die", "dead", "kill", "suicide"}, Reply: "Yes, death matters here."},
		{Keywords: []string{"food", "eat", "drink", "soup"}, Reply: "Yes, what was consumed is important."},
	},
	models.LanguageZH: {
		{Keywords: []string{"死", "杀", "血"}, Reply: "是，死亡是关键。"},
		{Keywords: []string{"吃", "喝", "食物", "汤"}, Reply: "是，与饮食有关。"},
	},
}

var defaultFallbacks = map[models.Language][]string{
	models.LanguageEN: {"No.", "Yes.", "Irrelevant.", "Please be more specific.", "Not exactly."},
	models.LanguageZH: {"否。", "是。", "无关。", "请问得更具体一点。", "不完全是。"},
}

var correctReply = map[models.Language]string{
	models.LanguageEN: "Correct!",
	models.LanguageZH: "回答正确！",
}

// NewOffline returns the keyword oracle. With no reveal keywords it falls back to
// "answer" and "答案".
func NewOffline(revealKeywords ...string) *Offline {
	if len(revealKeywords) == 0 {
		revealKeywords = []string{"answer", "答案"}
	}
	return &Offline{
		RevealKeywords: revealKeywords,
		Rules:          defaultRules,
		Fallbacks:      defaultFallbacks,
	}
}

func (o *Offline) Ready() error { return nil }

func (o *Offline) Judge(ctx context.Context, req Request) (Judgment, error) {
	if err := ctx.Err(); err != nil {
		return Judgment{}, err
	}
	return ParseReply(o.reply(req)), nil
}

func (o *Offline) reply(req Request) string {
	lang := req.Language
	if lang != models.LanguageZH {
		lang = models.LanguageEN
	}
	q := strings.ToLower(req.Question)

	for _, kw := range o.RevealKeywords {
		if kw != "" && strings.Contains(q, strings.ToLower(kw)) {
			return StageClearedMarker + " " + correctReply[lang]
		}
	}
	for _, r := range o.Rules[lang] {
		for _, kw := range r.Keywords {
			if strings.Contains(q, kw) {
				return r.Reply
			}
		}
	}

	fallbacks := o.Fallbacks[lang]
	if len(fallbacks) == 0 {
		return ""
	}
	h := fnv.New32a()
	h.Write([]byte(q))
	suffix := " (demo mode)"
	if lang == models.LanguageZH {
		suffix = "（演示模式）"
	}
	return fallbacks[int(h.Sum32()%uint32(len(fallbacks)))] + suffix
}
