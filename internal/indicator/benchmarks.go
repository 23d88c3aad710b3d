package indicator

// LHIN averages from the literature, plotted next to matching indicators.
var (
	AvgDiabeticAssessment = 0.433
	AvgDateHbA1C          = 0.591 // HbA1c done in past 6 months
	AvgLDL                = 0.706 // measured in past 12 months
	AvgBPUnderControl     = 0.66  // BP < 140/90
	AvgSmokingCessation   = 0.56  // advised to quit in past year
	AvgSmokers            = 0.192 // daily smokers, Ontario HSIP report
	AvgMammogram          = 0.60
	AvgPap                = 0.66
	AvgFOBT               = 0.32
)

// Program goals for the screening indicators.
var (
	GoalMammogram = 0.5
	GoalPap       = 0.5
	GoalFOBT      = 0.5
)
