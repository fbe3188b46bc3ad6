package pipeline

// ActionKind is a classified body action.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionHandsUp
	ActionHandsCrossed
	ActionOneHandLeft
	ActionOneHandRight
	ActionTPose
	ActionSit
	ActionStanding
)

var actionNames = map[ActionKind]string{
	ActionUnknown:      "Unknown",
	ActionHandsUp:      "Hands Up",
	ActionHandsCrossed: "Hands Crossed",
	ActionOneHandLeft:  "Left Hand",
	ActionOneHandRight: "Right Hand",
	ActionTPose:        "T-Pose",
	ActionSit:          "Sit",
	ActionStanding:     "Standing",
}

func (a ActionKind) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return actionNames[ActionUnknown]
}

// Landmark is one body keypoint in normalized image coordinates.
type Landmark struct {
	X, Y, Z    float64
	Visibility float64
}

// ActionClassifier maps body landmarks to an action.
type ActionClassifier interface {
	Classify(landmarks []Landmark) ActionKind
}

// StandingClassifier reports every person as standing. No pose estimator is wired yet.
type StandingClassifier struct{}

// Classify implements ActionClassifier.
func (StandingClassifier) Classify([]Landmark) ActionKind {
	return ActionStanding
}
