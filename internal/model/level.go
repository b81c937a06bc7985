package model

// Level bounds
const (
	MinLevel = 1
	MaxLevel = 20
)

// levelThresholds[i] is the experience needed to reach level i+1
var levelThresholds = [MaxLevel]int64{
	0, 100, 250, 450, 700, 1000, 1350, 1750, 2200, 2700,
	3250, 3850, 4500, 5200, 5950, 6750, 7600, 8500, 9450, 10450,
}

// LevelThresholds returns a copy of the experience table, indexed by level-1
func LevelThresholds() []int64 {
	out := make([]int64, len(levelThresholds))
	copy(out, levelThresholds[:])
	return out
}

// ThresholdFor returns the experience needed to reach the given level.
// Levels outside [MinLevel, MaxLevel] are clamped.
func ThresholdFor(level int) int64 {
	if level < MinLevel {
		level = MinLevel
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return levelThresholds[level-1]
}

// LevelOf returns the highest level whose threshold is at or below exp
func LevelOf(exp int64) int {
	for lvl := MaxLevel; lvl > MinLevel; lvl-- {
		if exp >= levelThresholds[lvl-1] {
			return lvl
		}
	}
	return MinLevel
}

// LevelProgress describes where an experience total sits inside its level
type LevelProgress struct {
	Level int
	// Current is experience earned since reaching Level
	Current int64
	// Needed is the experience span of Level; zero at MaxLevel
	Needed int64
}

// ProgressOf returns the level progress for an experience total
func ProgressOf(exp int64) LevelProgress {
	lvl := LevelOf(exp)
	floor := ThresholdFor(lvl)
	p := LevelProgress{Level: lvl, Current: exp - floor}
	if lvl < MaxLevel {
		p.Needed = ThresholdFor(lvl+1) - floor
	}
	return p
}
