package invfreighter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lightninglabs/zkinv/fn"
	"github.com/lightninglabs/zkinv/inventory"
	"github.com/lightninglabs/zkinv/prover"
)

const (
	// DefaultProofTimeout is the time a single transition proof may take
	// before the whole batch is failed.
	DefaultProofTimeout = 5 * time.Minute
)

// ProvenStep is a projected step together with its proof. Pre and Post of
// the embedded step carry their final blinding factors.
type ProvenStep struct {
	Step

	// Request is the request the proof was generated for.
	Request *prover.TransitionRequest

	// Artifact is the prover's output.
	Artifact *inventory.ProofArtifact
}

// SchedulerConfig holds the knobs of the ProofScheduler.
type SchedulerConfig struct {
	// ProofTimeout bounds every single transition proof.
	ProofTimeout time.Duration

	// MaxConcurrency limits the number of proofs requested at once. Zero
	// means all steps are proven at once.
	MaxConcurrency int

	// NewBlinding generates a fresh blinding factor. Defaults to
	// inventory.NewBlinding.
	NewBlinding func() (inventory.Blinding, error)
}

// ProofScheduler proves all steps of a projected batch concurrently.
type ProofScheduler struct {
	prover prover.Prover
	cfg    SchedulerConfig
}

// NewProofScheduler creates a scheduler using the given prover.
func NewProofScheduler(p prover.Prover, cfg SchedulerConfig) *ProofScheduler {
	if cfg.ProofTimeout == 0 {
		cfg.ProofTimeout = DefaultProofTimeout
	}
	if cfg.NewBlinding == nil {
		cfg.NewBlinding = inventory.NewBlinding
	}

	return &ProofScheduler{
		prover: p,
		cfg:    cfg,
	}
}

// ProveSteps generates the proofs of all steps. Blinding factors are drawn
// independently per step, then every request is built and validated before
// the first proof is requested. Proofs are requested concurrently and a
// failed proof does not cancel its siblings, but any failure fails the whole
// batch with a BatchError listing every failed step. The returned steps are
// in logical order regardless of completion order.
func (s *ProofScheduler) ProveSteps(ctx context.Context,
	steps []Step) ([]*ProvenStep, error) {

	blindings, errs := fn.ParMapAll(
		ctx, steps, 0, func(context.Context, int, Step) (
			inventory.Blinding, error) {

			return s.cfg.NewBlinding()
		},
	)
	if err := collectStepErrors(steps, errs); err != nil {
		return nil, err
	}

	proven, err := assignBlindings(steps, blindings)
	if err != nil {
		return nil, err
	}

	errs = make([]error, len(proven))
	for i, p := range proven {
		p.Request, errs[i] = BuildRequest(&p.Step, p.Pre, blindings[i])
	}
	if err := collectStepErrors(steps, errs); err != nil {
		return nil, err
	}

	log.Infof("Requesting %d transition proofs", len(proven))
	start := time.Now()

	artifacts, errs := fn.ParMapAll(
		ctx, proven, s.cfg.MaxConcurrency, s.proveStep,
	)
	if err := collectStepErrors(steps, errs); err != nil {
		return nil, err
	}

	for i := range proven {
		proven[i].Artifact = artifacts[i]
	}

	log.Infof("Generated %d transition proofs in %v", len(proven),
		time.Since(start))

	return proven, nil
}

// proveStep requests and checks the proof of a single step.
func (s *ProofScheduler) proveStep(ctx context.Context, _ int,
	p *ProvenStep) (*inventory.ProofArtifact, error) {

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProofTimeout)
	defer cancel()

	start := time.Now()
	artifact, err := s.prover.ProveTransition(ctx, p.Request)
	switch {
	case err == nil:

	case errors.Is(err, inventory.ErrProver) || inventory.IsLocal(err):
		return nil, err

	default:
		return nil, fmt.Errorf("%w: %w", inventory.ErrProver, err)
	}

	log.Debugf("Proved step %d (%v) in %v", p.Index, p.Op,
		time.Since(start))

	if err := checkArtifact(&p.Step, artifact); err != nil {
		return nil, fmt.Errorf("%w: %v", inventory.ErrProver, err)
	}

	return artifact, nil
}

// assignBlindings threads the drawn blinding factors through the chains of
// the steps: step i's post state gets blindings[i], and the next step on the
// same inventory starts from it.
func assignBlindings(steps []Step,
	blindings []inventory.Blinding) ([]*ProvenStep, error) {

	var (
		last   = make(map[inventory.ID]inventory.Blinding)
		used   = make(map[inventory.Blinding]int)
		proven = make([]*ProvenStep, 0, len(steps))
	)
	for i, step := range steps {
		if prev, ok := used[blindings[i]]; ok {
			return nil, &BatchError{Steps: []*StepError{{
				Index:       i,
				InventoryID: step.InventoryID,
				Op:          step.Op,
				Err: fmt.Errorf("%w: blinding factor of step "+
					"%d drawn twice",
					inventory.ErrInvalidOperation, prev),
			}}}
		}
		used[blindings[i]] = i

		if _, ok := last[step.InventoryID]; !ok {
			last[step.InventoryID] = step.Pre.Blinding
		}

		step.Pre = step.Pre.Copy()
		step.Pre.Blinding = last[step.InventoryID]

		step.Post = step.Post.Copy()
		step.Post.Blinding = blindings[i]

		last[step.InventoryID] = blindings[i]

		proven = append(proven, &ProvenStep{Step: step})
	}

	return proven, nil
}

// checkArtifact makes sure the prover bound the proof to exactly the chain
// context it was asked for.
func checkArtifact(step *Step, a *inventory.ProofArtifact) error {
	switch {
	case a == nil:
		return fmt.Errorf("no artifact")

	case len(a.Proof) == 0:
		return fmt.Errorf("empty proof")

	case a.Nonce != step.Context.Nonce:
		return fmt.Errorf("proof bound to nonce %d, expected %d",
			a.Nonce, step.Context.Nonce)

	case a.InventoryID != step.InventoryID:
		return fmt.Errorf("proof bound to inventory %v, expected %v",
			a.InventoryID, step.InventoryID)

	case a.RegistryRoot != step.Context.RegistryRoot:
		return fmt.Errorf("proof bound to registry root %v, "+
			"expected %v", a.RegistryRoot, step.Context.RegistryRoot)

	case a.NewVolume != step.PostVolume:
		return fmt.Errorf("prover computed volume %d, expected %d",
			a.NewVolume, step.PostVolume)

	case len(a.PublicInputs) != inventory.NumTransitionInputs:
		return fmt.Errorf("expected %d public inputs, got %d",
			inventory.NumTransitionInputs, len(a.PublicInputs))

	case a.PublicInputs[inventory.PublicInputNonce] !=
		inventory.FieldFromUint64(a.Nonce),

		a.PublicInputs[inventory.PublicInputInventoryID] !=
			a.InventoryID.FieldElement(),

		a.PublicInputs[inventory.PublicInputRegistryRoot] !=
			a.RegistryRoot:

		return fmt.Errorf("public inputs don't match the chain context")
	}

	return nil
}

// collectStepErrors turns the positional errors of a parallel run into a
// BatchError, or nil if all succeeded.
func collectStepErrors(steps []Step, errs []error) error {
	var failed []*StepError
	for i, err := range errs {
		if err == nil {
			continue
		}

		failed = append(failed, &StepError{
			Index:       steps[i].Index,
			InventoryID: steps[i].InventoryID,
			Op:          steps[i].Op,
			Err:         err,
		})
	}

	if len(failed) == 0 {
		return nil
	}

	return &BatchError{Steps: failed}
}
