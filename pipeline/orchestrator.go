package pipeline

import (
	"context"
	"errors"
	"fmt"

	"printloom/core"
	"printloom/rewrite"
	"printloom/transform"

	"github.com/sirupsen/logrus"
)

// DefaultEditModel is the provider model used when the caller picks none.
// Instructions are rewritten for conservativeness only for this model; callers
// choosing a specific model are assumed to know what they want.
const DefaultEditModel = "design-edit-v1"

const (
	defaultEditStrength      = 0.3
	defaultKnockoutTolerance = 12
	defaultUpscaleFormat     = "png"
	defaultMockupRatio       = "3:4"
)

type (
	// Request carries the union of per-kind transform inputs. Pointer fields
	// distinguish "absent" from zero so defaults apply only when the caller
	// said nothing.
	Request struct {
		Kind     transform.Kind
		DesignID string

		ImageURL    string
		Instruction string
		Model       string
		Strength    *float64

		BackgroundColor string
		Tolerance       *int

		OutputFormat  string
		UpscaleMode   string
		UpscaleFactor int

		AspectRatio string

		StyleImageURLs []string
	}

	// Result is the orchestrator's tagged outcome: the asset reference is the
	// mandatory primary result, Recorded reports whether the best-effort
	// history append also succeeded. A false Recorded is never an error.
	Result struct {
		AssetURL string `json:"assetUrl"`
		Recorded bool   `json:"recorded"`
	}

	// AssetArchiver mirrors a finished asset into long-term storage.
	// Best-effort, like the variation append.
	AssetArchiver interface {
		Archive(ctx context.Context, userID, assetURL string) error
	}

	// Orchestrator sequences one design iteration: validate inputs, optionally
	// rewrite the instruction, invoke the remote transform, then record the
	// result in the design's variation history without ever letting the
	// bookkeeping fail the transform.
	Orchestrator struct {
		gateway    transform.Gateway
		rewriter   rewrite.Rewriter
		variations core.VariationStore
		archiver   AssetArchiver
	}
)

// New wires an orchestrator. archiver may be nil when no archive bucket is
// configured.
func New(gateway transform.Gateway, rewriter rewrite.Rewriter, variations core.VariationStore, archiver AssetArchiver) *Orchestrator {
	return &Orchestrator{
		gateway:    gateway,
		rewriter:   rewriter,
		variations: variations,
		archiver:   archiver,
	}
}

// Apply runs one transform. userID may be empty for anonymous callers; the
// variation history is only written for authenticated callers that named a
// design. The remote call is never retried here; a gateway failure surfaces
// directly to the caller.
func (o *Orchestrator) Apply(ctx context.Context, userID string, req Request) (*Result, error) {
	assetURL, instruction, err := o.invoke(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &Result{AssetURL: assetURL}
	if req.DesignID != "" && userID != "" {
		result.Recorded = o.record(ctx, req.DesignID, assetURL, req.Kind.Label(), instruction)
	}

	// Print-grade outputs are worth keeping a private copy of; the originals
	// live on the provider's CDN and expire.
	if o.archiver != nil && (req.Kind == transform.KindUpscale || req.Kind == transform.KindPreparePrint) {
		if err := o.archiver.Archive(ctx, userID, assetURL); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":    err,
				"userID":   userID,
				"assetURL": assetURL,
			}).Warn("Failed to archive transform result")
		}
	}

	return result, nil
}

// invoke validates the request for its kind, applies defaults and calls the
// gateway. It returns the new asset reference and the instruction actually
// sent, which may differ from the caller's when the rewrite succeeded.
func (o *Orchestrator) invoke(ctx context.Context, req Request) (string, string, error) {
	switch req.Kind {
	case transform.KindEdit:
		if req.ImageURL == "" {
			return "", "", fmt.Errorf("%w: imageUrl is required", core.ErrMissingInput)
		}
		if req.Instruction == "" {
			return "", "", fmt.Errorf("%w: instruction is required", core.ErrMissingInput)
		}
		strength := defaultEditStrength
		if req.Strength != nil {
			strength = *req.Strength
		}
		instruction := o.conservativeInstruction(ctx, req.Model, req.Instruction)
		assetURL, err := o.gateway.Edit(ctx, transform.EditParams{
			ImageURL: req.ImageURL,
			Prompt:   instruction,
			Model:    req.Model,
			Strength: strength,
		})
		return assetURL, instruction, err

	case transform.KindRemoveBackground:
		if req.ImageURL == "" {
			return "", "", fmt.Errorf("%w: imageUrl is required", core.ErrMissingInput)
		}
		assetURL, err := o.gateway.RemoveBackground(ctx, req.ImageURL)
		return assetURL, "", err

	case transform.KindKnockoutColor:
		if req.ImageURL == "" {
			return "", "", fmt.Errorf("%w: imageUrl is required", core.ErrMissingInput)
		}
		if req.BackgroundColor == "" {
			return "", "", fmt.Errorf("%w: backgroundColor is required", core.ErrMissingInput)
		}
		tolerance := defaultKnockoutTolerance
		if req.Tolerance != nil {
			tolerance = *req.Tolerance
		}
		assetURL, err := o.gateway.KnockoutColor(ctx, transform.KnockoutParams{
			ImageURL:        req.ImageURL,
			BackgroundColor: req.BackgroundColor,
			Tolerance:       tolerance,
		})
		return assetURL, "", err

	case transform.KindUpscale:
		if req.ImageURL == "" {
			return "", "", fmt.Errorf("%w: imageUrl is required", core.ErrMissingInput)
		}
		format := req.OutputFormat
		if format == "" {
			format = defaultUpscaleFormat
		}
		assetURL, err := o.gateway.Upscale(ctx, transform.UpscaleParams{
			ImageURL:     req.ImageURL,
			OutputFormat: format,
			Mode:         req.UpscaleMode,
			Factor:       req.UpscaleFactor,
		})
		return assetURL, "", err

	case transform.KindPreparePrint:
		if req.ImageURL == "" {
			return "", "", fmt.Errorf("%w: imageUrl is required", core.ErrMissingInput)
		}
		assetURL, err := o.gateway.PreparePrint(ctx, req.ImageURL)
		return assetURL, "", err

	case transform.KindMockup:
		if req.ImageURL == "" {
			return "", "", fmt.Errorf("%w: imageUrl is required", core.ErrMissingInput)
		}
		ratio := req.AspectRatio
		if ratio == "" {
			ratio = defaultMockupRatio
		}
		assetURL, err := o.gateway.Mockup(ctx, transform.MockupParams{
			ImageURL:    req.ImageURL,
			AspectRatio: ratio,
		})
		return assetURL, "", err

	case transform.KindCreateStyle:
		if len(req.StyleImageURLs) == 0 {
			return "", "", fmt.Errorf("%w: at least one reference image url is required", core.ErrMissingInput)
		}
		assetURL, err := o.gateway.CreateStyle(ctx, req.StyleImageURLs)
		return assetURL, "", err
	}

	return "", "", fmt.Errorf("unsupported transform kind %q", req.Kind)
}

// conservativeInstruction asks the rewrite collaborator for a version of the
// instruction that preserves the rest of the artwork. The rewrite is advisory:
// any failure is logged and the original instruction is used.
func (o *Orchestrator) conservativeInstruction(ctx context.Context, model, instruction string) string {
	if model != "" && model != DefaultEditModel {
		return instruction
	}
	if o.rewriter == nil {
		return instruction
	}

	rewritten, err := o.rewriter.Rewrite(ctx, instruction)
	if err != nil {
		logrus.WithField("error", err).Warn("Instruction rewrite failed, using original instruction")
		return instruction
	}
	return rewritten
}

// record appends the transform to the design's variation history. A transform
// the provider already ran must never be discarded because bookkeeping broke,
// so every failure here is logged and swallowed.
func (o *Orchestrator) record(ctx context.Context, designID, assetURL, kind, instruction string) bool {
	_, err := o.variations.Append(ctx, &core.Variation{
		DesignID: designID,
		ImageURL: assetURL,
		Kind:     kind,
		Prompt:   instruction,
	})
	if err == nil {
		return true
	}

	fields := logrus.Fields{
		"error":    err,
		"designID": designID,
		"kind":     kind,
	}
	if errors.Is(err, core.ErrSchemaMissing) {
		logrus.WithFields(fields).Error("Variations table does not exist; run the schema migration to enable edit history")
	} else {
		logrus.WithFields(fields).Error("Failed to record variation, returning transform result anyway")
	}
	return false
}
