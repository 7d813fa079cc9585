package config

// LearningConfig holds the hyperparameters that drive rule-confidence and
// operator-preference adjustment. These affect personality: raise the
// increments for a credulous system, lower them for a stubborn one.
type LearningConfig struct {
	// ConfInc / ConfDec move rule confidence on correct / wrong predictions.
	ConfInc float64 `yaml:"conf_inc"`
	ConfDec float64 `yaml:"conf_dec"`

	// PrefInc / PrefDec move operator preference on success / failure.
	PrefInc float64 `yaml:"pref_inc"`
	PrefDec float64 `yaml:"pref_dec"`

	// MinPref gates operator selection (operators below are never offered).
	MinPref float64 `yaml:"min_pref"`

	// Wild scales randomness in operator choice (0 = strictly greedy).
	Wild float64 `yaml:"wild"`

	// FreshSecs bounds how far back Motive searches for a recent call.
	FreshSecs float64 `yaml:"fresh_secs"`

	// DitherSecs is the window for FIND backstop retry after a failure.
	DitherSecs float64 `yaml:"dither_secs"`

	// RetireSecs removes a focus this long after it finishes.
	RetireSecs float64 `yaml:"retire_secs"`
}

// DefaultLearningConfig returns the standard adjustment magnitudes.
func DefaultLearningConfig() LearningConfig {
	return LearningConfig{
		ConfInc:    0.10,
		ConfDec:    0.10,
		PrefInc:    0.05,
		PrefDec:    0.05,
		MinPref:    0.30,
		Wild:       0.0,
		FreshSecs:  20.0,
		DitherSecs: 2.5,
		RetireSecs: 30.0,
	}
}
