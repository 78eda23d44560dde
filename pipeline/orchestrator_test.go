package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"printloom/core"
	"printloom/transform"
)

type mockGateway struct {
	calls int
	err   error

	lastEdit     transform.EditParams
	lastKnockout transform.KnockoutParams
	lastUpscale  transform.UpscaleParams
	lastMockup   transform.MockupParams
	lastImageURL string
	lastStyle    []string
}

const resultURL = "https://cdn.example.com/result.png"

func (g *mockGateway) result() (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return resultURL, nil
}

func (g *mockGateway) Edit(ctx context.Context, p transform.EditParams) (string, error) {
	g.lastEdit = p
	return g.result()
}

func (g *mockGateway) RemoveBackground(ctx context.Context, imageURL string) (string, error) {
	g.lastImageURL = imageURL
	return g.result()
}

func (g *mockGateway) KnockoutColor(ctx context.Context, p transform.KnockoutParams) (string, error) {
	g.lastKnockout = p
	return g.result()
}

func (g *mockGateway) Upscale(ctx context.Context, p transform.UpscaleParams) (string, error) {
	g.lastUpscale = p
	return g.result()
}

func (g *mockGateway) PreparePrint(ctx context.Context, imageURL string) (string, error) {
	g.lastImageURL = imageURL
	return g.result()
}

func (g *mockGateway) Mockup(ctx context.Context, p transform.MockupParams) (string, error) {
	g.lastMockup = p
	return g.result()
}

func (g *mockGateway) CreateStyle(ctx context.Context, imageURLs []string) (string, error) {
	g.lastStyle = imageURLs
	return g.result()
}

type mockRewriter struct {
	calls  int
	result string
	err    error
}

func (m *mockRewriter) Rewrite(ctx context.Context, instruction string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.result, nil
}

type mockVariations struct {
	appended  []*core.Variation
	appendErr error
}

func (m *mockVariations) Append(ctx context.Context, v *core.Variation) (string, error) {
	if m.appendErr != nil {
		return "", m.appendErr
	}
	m.appended = append(m.appended, v)
	return fmt.Sprintf("var-%d", len(m.appended)), nil
}

func (m *mockVariations) ListByDesign(ctx context.Context, designID string) ([]*core.Variation, error) {
	return m.appended, nil
}

func (m *mockVariations) DeleteVariation(ctx context.Context, designID, variationID string) error {
	return nil
}

func newTestOrchestrator() (*Orchestrator, *mockGateway, *mockRewriter, *mockVariations) {
	gateway := &mockGateway{}
	rewriter := &mockRewriter{result: "rewritten instruction"}
	variations := &mockVariations{}
	return New(gateway, rewriter, variations, nil), gateway, rewriter, variations
}

func TestApply_EditMissingInstruction(t *testing.T) {
	orch, gateway, _, _ := newTestOrchestrator()

	_, err := orch.Apply(context.Background(), "user-1", Request{
		Kind:     transform.KindEdit,
		ImageURL: "https://x/a.png",
	})
	if !errors.Is(err, core.ErrMissingInput) {
		t.Fatalf("Apply() error = %v, want ErrMissingInput", err)
	}
	if gateway.calls != 0 {
		t.Errorf("gateway was called %d times, want 0", gateway.calls)
	}
}

func TestApply_EditMissingImage(t *testing.T) {
	orch, gateway, _, _ := newTestOrchestrator()

	_, err := orch.Apply(context.Background(), "user-1", Request{
		Kind:        transform.KindEdit,
		Instruction: "make the sky purple",
	})
	if !errors.Is(err, core.ErrMissingInput) {
		t.Fatalf("Apply() error = %v, want ErrMissingInput", err)
	}
	if gateway.calls != 0 {
		t.Errorf("gateway was called %d times, want 0", gateway.calls)
	}
}

func TestApply_EditDefaultsAndRewrite(t *testing.T) {
	orch, gateway, rewriter, variations := newTestOrchestrator()

	result, err := orch.Apply(context.Background(), "user-1", Request{
		Kind:        transform.KindEdit,
		DesignID:    "design-1",
		ImageURL:    "https://x/a.png",
		Instruction: "make the sky purple",
	})
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if result.AssetURL != resultURL {
		t.Errorf("AssetURL = %q, want %q", result.AssetURL, resultURL)
	}
	if !result.Recorded {
		t.Error("Recorded = false, want true")
	}

	if rewriter.calls != 1 {
		t.Errorf("rewriter called %d times, want 1", rewriter.calls)
	}
	if gateway.lastEdit.Prompt != "rewritten instruction" {
		t.Errorf("gateway prompt = %q, want the rewritten instruction", gateway.lastEdit.Prompt)
	}
	if gateway.lastEdit.Strength != 0.3 {
		t.Errorf("strength = %v, want default 0.3", gateway.lastEdit.Strength)
	}

	if len(variations.appended) != 1 {
		t.Fatalf("appended %d variations, want 1", len(variations.appended))
	}
	v := variations.appended[0]
	if v.DesignID != "design-1" || v.ImageURL != resultURL || v.Kind != "edited" {
		t.Errorf("unexpected variation: %+v", v)
	}
	// The history records the instruction that was actually sent.
	if v.Prompt != "rewritten instruction" {
		t.Errorf("variation prompt = %q, want the rewritten instruction", v.Prompt)
	}
}

func TestApply_EditRewriteFailureFallsBack(t *testing.T) {
	orch, gateway, rewriter, _ := newTestOrchestrator()
	rewriter.err = errors.New("rewrite service down")

	result, err := orch.Apply(context.Background(), "user-1", Request{
		Kind:        transform.KindEdit,
		ImageURL:    "https://x/a.png",
		Instruction: "make the sky purple",
	})
	if err != nil {
		t.Fatalf("Apply() failed even though only the rewrite failed: %v", err)
	}
	if result.AssetURL != resultURL {
		t.Errorf("AssetURL = %q, want %q", result.AssetURL, resultURL)
	}
	if gateway.lastEdit.Prompt != "make the sky purple" {
		t.Errorf("gateway prompt = %q, want the original instruction", gateway.lastEdit.Prompt)
	}
}

func TestApply_EditExplicitModelSkipsRewrite(t *testing.T) {
	orch, gateway, rewriter, _ := newTestOrchestrator()

	_, err := orch.Apply(context.Background(), "user-1", Request{
		Kind:        transform.KindEdit,
		ImageURL:    "https://x/a.png",
		Instruction: "make the sky purple",
		Model:       "design-edit-pro",
	})
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if rewriter.calls != 0 {
		t.Errorf("rewriter called %d times, want 0 for a non-default model", rewriter.calls)
	}
	if gateway.lastEdit.Prompt != "make the sky purple" {
		t.Errorf("gateway prompt = %q, want the original instruction", gateway.lastEdit.Prompt)
	}
}

func TestApply_EditDefaultModelNameStillRewrites(t *testing.T) {
	orch, _, rewriter, _ := newTestOrchestrator()

	_, err := orch.Apply(context.Background(), "user-1", Request{
		Kind:        transform.KindEdit,
		ImageURL:    "https://x/a.png",
		Instruction: "make the sky purple",
		Model:       DefaultEditModel,
	})
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if rewriter.calls != 1 {
		t.Errorf("rewriter called %d times, want 1 when the default model is named explicitly", rewriter.calls)
	}
}

func TestApply_LedgerFailureIsIsolated(t *testing.T) {
	orch, _, _, variations := newTestOrchestrator()
	variations.appendErr = errors.New("database gone")

	result, err := orch.Apply(context.Background(), "user-1", Request{
		Kind:        transform.KindEdit,
		DesignID:    "design-1",
		ImageURL:    "https://x/a.png",
		Instruction: "make the sky purple",
	})
	if err != nil {
		t.Fatalf("Apply() surfaced a ledger failure: %v", err)
	}
	if result.AssetURL != resultURL {
		t.Errorf("AssetURL = %q, want the successful transform result", result.AssetURL)
	}
	if result.Recorded {
		t.Error("Recorded = true, want false after a ledger failure")
	}
}

func TestApply_SchemaMissingIsIsolated(t *testing.T) {
	orch, _, _, variations := newTestOrchestrator()
	variations.appendErr = fmt.Errorf("%w: no such table: variations", core.ErrSchemaMissing)

	result, err := orch.Apply(context.Background(), "user-1", Request{
		Kind:        transform.KindEdit,
		DesignID:    "design-1",
		ImageURL:    "https://x/a.png",
		Instruction: "make the sky purple",
	})
	if err != nil {
		t.Fatalf("Apply() surfaced a schema failure: %v", err)
	}
	if result.Recorded {
		t.Error("Recorded = true, want false when the variations table is missing")
	}
}

func TestApply_AnonymousCallerNotRecorded(t *testing.T) {
	orch, _, _, variations := newTestOrchestrator()

	result, err := orch.Apply(context.Background(), "", Request{
		Kind:        transform.KindEdit,
		DesignID:    "design-1",
		ImageURL:    "https://x/a.png",
		Instruction: "make the sky purple",
	})
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if result.Recorded {
		t.Error("Recorded = true, want false for an anonymous caller")
	}
	if len(variations.appended) != 0 {
		t.Errorf("appended %d variations, want 0", len(variations.appended))
	}
}

func TestApply_NoDesignNotRecorded(t *testing.T) {
	orch, _, _, variations := newTestOrchestrator()

	result, err := orch.Apply(context.Background(), "user-1", Request{
		Kind:        transform.KindEdit,
		ImageURL:    "https://x/a.png",
		Instruction: "make the sky purple",
	})
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if result.Recorded {
		t.Error("Recorded = true, want false without a target design")
	}
	if len(variations.appended) != 0 {
		t.Errorf("appended %d variations, want 0", len(variations.appended))
	}
}

func TestApply_RemoteFailureSurfaces(t *testing.T) {
	orch, gateway, _, variations := newTestOrchestrator()
	gateway.err = errors.New("capacity exceeded")

	_, err := orch.Apply(context.Background(), "user-1", Request{
		Kind:        transform.KindEdit,
		DesignID:    "design-1",
		ImageURL:    "https://x/a.png",
		Instruction: "make the sky purple",
	})
	if err == nil {
		t.Fatal("Apply() succeeded, want the remote failure surfaced")
	}
	if gateway.calls != 1 {
		t.Errorf("gateway called %d times, want exactly 1 (no retries)", gateway.calls)
	}
	if len(variations.appended) != 0 {
		t.Errorf("appended %d variations after a failed transform, want 0", len(variations.appended))
	}
}

func TestApply_UpscaleDefaults(t *testing.T) {
	orch, gateway, _, _ := newTestOrchestrator()

	_, err := orch.Apply(context.Background(), "user-1", Request{
		Kind:     transform.KindUpscale,
		ImageURL: "https://x/a.png",
	})
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if gateway.lastUpscale.ImageURL != "https://x/a.png" {
		t.Errorf("imageUrl = %q, want the source image", gateway.lastUpscale.ImageURL)
	}
	if gateway.lastUpscale.OutputFormat != "png" {
		t.Errorf("outputFormat = %q, want default png", gateway.lastUpscale.OutputFormat)
	}
	if gateway.lastUpscale.Mode != "" || gateway.lastUpscale.Factor != 0 {
		t.Errorf("mode/factor = %q/%d, want unset when absent from the request",
			gateway.lastUpscale.Mode, gateway.lastUpscale.Factor)
	}
}

func TestApply_KnockoutDefaults(t *testing.T) {
	orch, gateway, _, _ := newTestOrchestrator()

	_, err := orch.Apply(context.Background(), "user-1", Request{
		Kind:            transform.KindKnockoutColor,
		ImageURL:        "https://x/a.png",
		BackgroundColor: "#ffffff",
	})
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if gateway.lastKnockout.Tolerance != 12 {
		t.Errorf("tolerance = %d, want default 12", gateway.lastKnockout.Tolerance)
	}
}

func TestApply_KnockoutMissingColor(t *testing.T) {
	orch, gateway, _, _ := newTestOrchestrator()

	_, err := orch.Apply(context.Background(), "user-1", Request{
		Kind:     transform.KindKnockoutColor,
		ImageURL: "https://x/a.png",
	})
	if !errors.Is(err, core.ErrMissingInput) {
		t.Fatalf("Apply() error = %v, want ErrMissingInput", err)
	}
	if gateway.calls != 0 {
		t.Errorf("gateway was called %d times, want 0", gateway.calls)
	}
}

func TestApply_MockupDefaultRatio(t *testing.T) {
	orch, gateway, _, _ := newTestOrchestrator()

	_, err := orch.Apply(context.Background(), "user-1", Request{
		Kind:     transform.KindMockup,
		ImageURL: "https://x/a.png",
	})
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if gateway.lastMockup.AspectRatio != "3:4" {
		t.Errorf("aspectRatio = %q, want default 3:4", gateway.lastMockup.AspectRatio)
	}
}

func TestApply_CreateStyleRequiresReferences(t *testing.T) {
	orch, gateway, _, _ := newTestOrchestrator()

	_, err := orch.Apply(context.Background(), "user-1", Request{
		Kind: transform.KindCreateStyle,
	})
	if !errors.Is(err, core.ErrMissingInput) {
		t.Fatalf("Apply() error = %v, want ErrMissingInput", err)
	}
	if gateway.calls != 0 {
		t.Errorf("gateway was called %d times, want 0", gateway.calls)
	}

	if _, err := orch.Apply(context.Background(), "user-1", Request{
		Kind:           transform.KindCreateStyle,
		StyleImageURLs: []string{"https://x/ref1.png", "https://x/ref2.png"},
	}); err != nil {
		t.Fatalf("Apply() failed with references: %v", err)
	}
	if len(gateway.lastStyle) != 2 {
		t.Errorf("gateway received %d reference urls, want 2", len(gateway.lastStyle))
	}
}

func TestApply_CustomStrengthAndTolerance(t *testing.T) {
	orch, gateway, _, _ := newTestOrchestrator()

	strength := 0.8
	if _, err := orch.Apply(context.Background(), "user-1", Request{
		Kind:        transform.KindEdit,
		ImageURL:    "https://x/a.png",
		Instruction: "redraw the text",
		Strength:    &strength,
	}); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if gateway.lastEdit.Strength != 0.8 {
		t.Errorf("strength = %v, want the caller's 0.8", gateway.lastEdit.Strength)
	}

	tolerance := 0
	if _, err := orch.Apply(context.Background(), "user-1", Request{
		Kind:            transform.KindKnockoutColor,
		ImageURL:        "https://x/a.png",
		BackgroundColor: "#000000",
		Tolerance:       &tolerance,
	}); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	// An explicit zero tolerance is a real choice, not an absent field.
	if gateway.lastKnockout.Tolerance != 0 {
		t.Errorf("tolerance = %d, want the caller's 0", gateway.lastKnockout.Tolerance)
	}
}

type mockArchiver struct {
	calls int
	urls  []string
	err   error
}

func (m *mockArchiver) Archive(ctx context.Context, userID, assetURL string) error {
	m.calls++
	m.urls = append(m.urls, assetURL)
	return m.err
}

func TestApply_ArchivesPrintGradeOutputs(t *testing.T) {
	gateway := &mockGateway{}
	archiver := &mockArchiver{}
	orch := New(gateway, &mockRewriter{result: "x"}, &mockVariations{}, archiver)

	if _, err := orch.Apply(context.Background(), "user-1", Request{
		Kind:     transform.KindUpscale,
		ImageURL: "https://x/a.png",
	}); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if archiver.calls != 1 {
		t.Fatalf("archiver called %d times, want 1", archiver.calls)
	}

	if _, err := orch.Apply(context.Background(), "user-1", Request{
		Kind:        transform.KindEdit,
		ImageURL:    "https://x/a.png",
		Instruction: "tweak",
	}); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if archiver.calls != 1 {
		t.Errorf("archiver called for an edit, want print-grade outputs only")
	}
}

func TestApply_ArchiveFailureIsIsolated(t *testing.T) {
	gateway := &mockGateway{}
	archiver := &mockArchiver{err: errors.New("bucket gone")}
	orch := New(gateway, &mockRewriter{result: "x"}, &mockVariations{}, archiver)

	result, err := orch.Apply(context.Background(), "user-1", Request{
		Kind:     transform.KindPreparePrint,
		ImageURL: "https://x/a.png",
	})
	if err != nil {
		t.Fatalf("Apply() surfaced an archive failure: %v", err)
	}
	if result.AssetURL != resultURL {
		t.Errorf("AssetURL = %q, want the transform result", result.AssetURL)
	}
}
