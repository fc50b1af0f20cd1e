package remphasis

import "errors"

// Rejection and failure errors returned by augment, estep, and mcem.
//
// ErrAugmentationOverrun, ErrAugmentationLambda and ErrZeroWeight are
// non-fatal: the E-step counts them and continues. ErrMaxAttemptsExceeded
// and ErrModelFailure are fatal to an E-step run. ErrNoTrees is fatal
// to the MCEM driver and causes the M-step to be skipped.
var (
	// ErrAugmentationOverrun signals that an augmentation attempt
	// inserted more than max_missing latent species.
	ErrAugmentationOverrun = errors.New("remphasis: augmentation overrun: too many latent species")

	// ErrAugmentationLambda signals that the thinning envelope
	// lambda_max exceeded the configured max_lambda.
	ErrAugmentationLambda = errors.New("remphasis: augmentation lambda overrun")

	// ErrZeroWeight signals that an accepted augmentation's
	// importance weight was zero or non-finite.
	ErrZeroWeight = errors.New("remphasis: zero importance weight")

	// ErrMaxAttemptsExceeded signals that fewer than N trees were
	// accepted within maxN augmentation attempts.
	ErrMaxAttemptsExceeded = errors.New("remphasis: maxN attempts exceeded without reaching N accepted trees")

	// ErrModelFailure wraps a panic raised by a Model method during
	// the E-step's parallel region.
	ErrModelFailure = errors.New("remphasis: model failure")

	// ErrNoTrees signals that the E-step produced no accepted trees;
	// the MCEM driver skips the M-step.
	ErrNoTrees = errors.New("remphasis: no accepted trees")
)
