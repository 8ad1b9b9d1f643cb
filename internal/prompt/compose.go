package prompt

import (
	"fmt"
	"strings"

	"atelier-ai/internal/catalog"
)

// Composed is the deterministic rendering of one validated request. Snapshot
// keeps the exact facets the text was built from, for the audit record.
type Composed struct {
	Text     string
	Snapshot map[catalog.Category]catalog.Facet
}

// Compose renders the generation instruction. The section order — model
// persona, garment count, pose, camera angle, lighting, style, background —
// is a contract: downstream output quality is sensitive to phrasing order,
// so reordering is a breaking change.
//
// Garments are referenced strictly by position ("Garment #1"). Their URIs
// never appear in the text, so hostile filenames cannot inject instructions.
func Compose(facets map[catalog.Category]catalog.Facet, garmentCount int) Composed {
	if garmentCount < 1 {
		garmentCount = 1
	}

	snapshot := make(map[catalog.Category]catalog.Facet, len(facets))
	for cat, f := range facets {
		snapshot[cat] = f
	}

	var b strings.Builder
	b.Grow(4096)

	b.WriteString("TASK: Professional fashion photograph of a model wearing the attached garment(s).\n\n")

	b.WriteString("GARMENT IDENTITY LOCK: The attached images contain the real garments. Treat this as an image-edit/compositing task.\n")
	b.WriteString(fmt.Sprintf("- %d garment reference image(s) are attached, numbered by position: Garment #1 through Garment #%d.\n", garmentCount, garmentCount))
	b.WriteString("- Every garment must appear on the model exactly as photographed: preserve cut, fabric, color, pattern, prints, and hardware.\n")
	b.WriteString("- Do NOT redesign, recolor, or substitute any garment; do not invent branding or text.\n")
	b.WriteString("- Fit the garments naturally to the model's pose with physically correct drape and wrinkles.\n\n")

	b.WriteString("SUBJECT:\n")
	b.WriteString("- Model: " + facets[catalog.CategoryModel].Display + "\n")
	b.WriteString(fmt.Sprintf("- Wearing the %d attached garment(s), styled as one coherent outfit.\n\n", garmentCount))

	b.WriteString("POSE:\n")
	b.WriteString("- " + facets[catalog.CategoryPose].Display + "\n\n")

	b.WriteString("CAMERA:\n")
	b.WriteString("- " + facets[catalog.CategoryCameraAngle].Display + "\n\n")

	b.WriteString("LIGHTING:\n")
	b.WriteString("- " + facets[catalog.CategoryLighting].Display + "\n\n")

	b.WriteString("STYLE:\n")
	b.WriteString("- " + facets[catalog.CategoryStyle].Display + "\n\n")

	b.WriteString("SETTING:\n")
	b.WriteString("- " + facets[catalog.CategoryBackground].Display + "\n\n")

	b.WriteString("UNIVERSAL TECHNICAL SPECS:\n")
	writeSection(&b, "Garment integrity", []string{
		"100% accurate garment shape, fabric, and color (same items as the references)",
		"No distortion, warping, or substitution",
		"Prints/logos: if present in a reference, keep legible and unchanged; if absent, add none",
		"Pristine condition, professionally steamed",
	})
	writeSection(&b, "Realism", []string{
		"Photorealistic skin, hair, and fabric rendering",
		"Anatomically correct hands and proportions",
		"Natural garment-body interaction at shoulders, waist, and hems",
	})
	writeSection(&b, "Finish", []string{
		"Editorial-grade retouching without plastic skin",
		"Tack-sharp garment focus",
		"Professional color grading consistent with the lighting direction",
	})
	b.WriteString("\n")

	b.WriteString("NEGATIVE PROMPT (avoid):\n")
	for _, line := range []string{
		"altered or substituted garment", "invented branding", "misspelled label text",
		"extra limbs", "deformed hands", "distorted face",
		"watermark", "text overlays", "borders", "collage", "split frame",
		"low resolution", "blurry garment", "plastic skin",
	} {
		b.WriteString("- " + line + "\n")
	}
	b.WriteString("\n")

	b.WriteString("OUTPUT RULES:\n")
	b.WriteString("- Return exactly one photograph.\n")
	b.WriteString("- Also return one short paragraph describing the finished look (model, outfit, mood). No JSON, no markdown.\n")

	return Composed{
		Text:     strings.TrimSpace(b.String()),
		Snapshot: snapshot,
	}
}

func writeSection(b *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	b.WriteString("- " + title + ":\n")
	for _, line := range lines {
		b.WriteString("  - " + line + "\n")
	}
}
