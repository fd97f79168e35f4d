package catalog

import "alcyxob/physiotrack/internal/domain"

// Fields shared by many exercises on the clinic sheet.
var (
	sideField   = domain.ExerciseField{Key: "side", Label: "Side", Kind: domain.InputSelect, Options: []string{"R", "L", "Both"}, Width: "w-20"}
	weightField = domain.ExerciseField{Key: "weight", Label: "Wt", Kind: domain.InputText, Placeholder: "kg/lb", Width: "w-20"}
	repsField   = domain.ExerciseField{Key: "reps", Label: "Reps", Kind: domain.InputText, Placeholder: "10x3", Width: "w-20"}
	minsField   = domain.ExerciseField{Key: "mins", Label: "Mins", Kind: domain.InputNumber, Placeholder: "min", Width: "w-20"}
	levelField  = domain.ExerciseField{Key: "level", Label: "Level", Kind: domain.InputText, Placeholder: "Lvl", Width: "w-20"}
	kgField     = domain.ExerciseField{Key: "val", Label: "/ kg", Kind: domain.InputText, Width: "w-24"}
)

func textField(key, label, width string) domain.ExerciseField {
	return domain.ExerciseField{Key: key, Label: label, Kind: domain.InputText, Width: width}
}

func selectField(key, label, width string, options ...string) domain.ExerciseField {
	return domain.ExerciseField{Key: key, Label: label, Kind: domain.InputSelect, Options: options, Width: width}
}

func fields(f ...domain.ExerciseField) []domain.ExerciseField {
	if f == nil {
		return []domain.ExerciseField{}
	}
	return f
}

var defaultDefinitions = []domain.ExerciseDefinition{
	// Electrotherapy
	{ID: "hot_pack", Name: "Hot pack", Category: domain.CategoryElectrotherapy, Fields: fields()},
	{ID: "ice_pack", Name: "Ice pack", Category: domain.CategoryElectrotherapy, Fields: fields()},
	{ID: "gameready", Name: "Gameready", Category: domain.CategoryElectrotherapy, Fields: fields()},
	{ID: "magnetopulse", Name: "Magnetopulse + Ice", Category: domain.CategoryElectrotherapy, Fields: fields()},
	{ID: "tens", Name: "TENS", Category: domain.CategoryElectrotherapy, Fields: fields()},
	{ID: "ems", Name: "EMS", Category: domain.CategoryElectrotherapy, Fields: fields()},
	{ID: "shockwave", Name: "Shockwave", Category: domain.CategoryElectrotherapy, Fields: fields()},
	{ID: "us", Name: "US", Category: domain.CategoryElectrotherapy, Fields: fields()},
	{ID: "int", Name: "INT", Category: domain.CategoryElectrotherapy, Fields: fields(kgField)},
	{ID: "ipt", Name: "IPT + Stool", Category: domain.CategoryElectrotherapy, Fields: fields(kgField)},

	// Aerobic
	{ID: "lower_limb_ergo", Name: "Lower limb ergometer (大單車)", Category: domain.CategoryAerobic, Fields: fields(levelField, minsField)},
	{ID: "nustep", Name: "NuStep (坐式踏步機)", Category: domain.CategoryAerobic, Fields: fields(textField("seat", "Seat", "w-16"), textField("arm", "Arm", "w-16"), levelField, minsField)},
	{ID: "treadmill", Name: "Treadmill (跑步機)", Category: domain.CategoryAerobic, Fields: fields(textField("incline", "Inc %", "w-16"), textField("speed", "km/hr", "w-16"), minsField)},
	{ID: "stepper", Name: "Stepper (爬山機)", Category: domain.CategoryAerobic, Fields: fields(textField("resistance", "Resist", "w-20"), minsField)},

	// Strengthening
	{ID: "biceps_curl", Name: "Biceps curl (肘上拉)", Category: domain.CategoryStrengthening, Fields: fields(weightField, repsField)},
	{ID: "triceps_ext", Name: "Triceps extension (肘下壓)", Category: domain.CategoryStrengthening, Fields: fields(weightField, repsField)},
	{ID: "pect_fly", Name: "Pect fly (蝴蝶式健胸)", Category: domain.CategoryStrengthening, Fields: fields(weightField, repsField)},
	{ID: "lat_pull", Name: "Lat pull down (拉背)", Category: domain.CategoryStrengthening, Fields: fields(weightField, repsField)},
	{ID: "leg_press_2", Name: "Leg press Rm 2 (撐腿機 二房)", Category: domain.CategoryStrengthening, Fields: fields(sideField, weightField, repsField)},
	{ID: "leg_press_3", Name: "Leg press Rm 3 (撐腿機 三房)", Category: domain.CategoryStrengthening, Fields: fields(sideField, weightField, repsField)},
	{ID: "sandbag_knee", Name: "Sandbag knee extension (踢沙包)", Category: domain.CategoryStrengthening, Fields: fields(sideField, weightField, minsField)},
	{ID: "theraband", Name: "Theraband (橡筋帶)", Category: domain.CategoryStrengthening, Fields: fields(selectField("color", "Color", "w-24", "Yellow", "Red", "Green", "Blue"), minsField)},

	// Mobilization
	{ID: "ankle_mob", Name: "Ankle mobilizer (藍船)", Category: domain.CategoryMobilization, Fields: fields(sideField, minsField)},
	{ID: "heel_slide", Name: "Heel slide (腳跟滑動板)", Category: domain.CategoryMobilization, Fields: fields(selectField("side", "Side", "w-20", "R", "L"), minsField)},
	{ID: "pedlar", Name: "Pedlar exerciser (小單車)", Category: domain.CategoryMobilization, Fields: fields(minsField)},
	{ID: "rope_pulley", Name: "Reciprocal pulley (拉繩)", Category: domain.CategoryMobilization, Fields: fields(selectField("part", "Part", "w-20", "Shdr", "Knee"), selectField("dir", "Dir", "w-20", "Front", "Side", "Back"), minsField)},

	// Balance
	{ID: "balance_foam", Name: "Balance foam (海棉/平衡墊)", Category: domain.CategoryBalance, Fields: fields(sideField, selectField("action", "Act", "w-24", "Stand", "Step"), minsField)},
	{ID: "biodex", Name: "Biodex (平衡機)", Category: domain.CategoryBalance, Fields: fields(selectField("mode", "Mode", "w-20", "PS", "WS", "LOS", "MC"), levelField, minsField)},

	// Hand
	{ID: "clipping", Name: "Clipping (手指練力夾)", Category: domain.CategoryHand, Fields: fields(selectField("side", "Side", "w-20", "R", "L"), selectField("color", "Color", "w-20", "Yel", "Red", "Grn", "Blu", "Blk"), minsField)},
	{ID: "putty", Name: "Putty (泥膠)", Category: domain.CategoryHand, Fields: fields(selectField("side", "Side", "w-20", "R", "L"), selectField("color", "Color", "w-20", "Bei", "Yel", "Red", "Grn", "Blu"), minsField)},

	// Others
	{ID: "fit_ball", Name: "Fit ball / Peanut ball", Category: domain.CategoryOthers, Fields: fields(selectField("action", "Action", "w-32", "Front/Back", "L/R", "Bridge", "Squat"), minsField)},
	{ID: "steps", Name: "Stepping exercise (踏級)", Category: domain.CategoryOthers, Fields: fields(domain.ExerciseField{Key: "height", Label: "Height", Kind: domain.InputText, Placeholder: "inches", Width: "w-24"}, minsField)},
}

// Default returns the clinic's exercise sheet.
func Default() *Catalog {
	c, err := New(defaultDefinitions)
	if err != nil {
		panic("catalog: invalid default definitions: " + err.Error())
	}
	return c
}
