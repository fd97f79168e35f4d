package prescription

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"alcyxob/physiotrack/internal/catalog"
	"alcyxob/physiotrack/internal/domain"
)

func sampleRecord() *domain.PatientData {
	return &domain.PatientData{
		ID:            "PHYA1",
		Name:          "Chan Tai Man",
		TherapistName: "Dr. Lee",
		LastUpdated:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC).UnixMilli(),
		Exercises: []domain.PrescribedExercise{
			{ExerciseID: "free-1", Name: "Balance board 5 min", Category: domain.CategoryFreeText},
			{ExerciseID: "treadmill", Name: "Treadmill (跑步機)", Category: domain.CategoryAerobic, Data: domain.FieldValues{
				"mins": domain.NumberValue(10), "incline": domain.TextValue("5"), "speed": domain.TextValue(""),
			}},
			{ExerciseID: "hot_pack", Name: "Hot pack", Category: domain.CategoryElectrotherapy},
			{ExerciseID: "nustep", Name: "NuStep (坐式踏步機)", Category: domain.CategoryAerobic, Data: domain.FieldValues{
				"seat": domain.TextValue("false"), "note": domain.FlagValue(true),
			}},
		},
	}
}

func TestGroup_CategoryOrder(t *testing.T) {
	view := Group(sampleRecord(), catalog.Default())

	var got []domain.ExerciseCategory
	for _, g := range view.Groups {
		got = append(got, g.Category)
	}
	want := []domain.ExerciseCategory{domain.CategoryElectrotherapy, domain.CategoryAerobic, domain.CategoryFreeText}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("group order = %v, want %v", got, want)
	}

	aerobic := view.Groups[1].Items
	if aerobic[0].ExerciseID != "treadmill" || aerobic[1].ExerciseID != "nustep" {
		t.Errorf("items within a category lost record order: %+v", aerobic)
	}
}

func TestGroup_Details(t *testing.T) {
	view := Group(sampleRecord(), catalog.Default())
	aerobic := view.Groups[1].Items

	treadmill := aerobic[0].Details
	wantTreadmill := []Detail{{Label: "Inc %", Value: "5"}, {Label: "Mins", Value: "10"}}
	if !reflect.DeepEqual(treadmill, wantTreadmill) {
		t.Errorf("treadmill details = %+v, want %+v", treadmill, wantTreadmill)
	}

	nustep := aerobic[1].Details
	wantNustep := []Detail{{Label: "note"}}
	if !reflect.DeepEqual(nustep, wantNustep) {
		t.Errorf("nustep details = %+v, want %+v", nustep, wantNustep)
	}
}

func TestGroup_UnknownCategoryBeforeFreeText(t *testing.T) {
	rec := &domain.PatientData{ID: "X", Exercises: []domain.PrescribedExercise{
		{ExerciseID: "f", Name: "free", Category: domain.CategoryFreeText},
		{ExerciseID: "legacy", Name: "Old", Category: "Hydrotherapy"},
	}}
	view := Group(rec, catalog.Default())
	if len(view.Groups) != 2 || view.Groups[0].Category != "Hydrotherapy" {
		t.Errorf("groups = %+v", view.Groups)
	}
}

func TestRenderSheet(t *testing.T) {
	sheet := RenderSheet(sampleRecord(), catalog.Default(), time.UTC)

	for _, want := range []string{
		"Patient: Chan Tai Man (PHYA1)",
		"Physio:  Dr. Lee",
		"Class:   N/A",
		"Date:    2024-03-01",
		"[Electrotherapy]\n  - Hot pack\n",
		"  - Treadmill (跑步機)  (Inc %: 5, Mins: 10)",
		"[Additional Exercises]\n  - Balance board 5 min\n",
	} {
		if !strings.Contains(sheet, want) {
			t.Errorf("sheet missing %q:\n%s", want, sheet)
		}
	}
	if strings.Index(sheet, "[Electrotherapy]") > strings.Index(sheet, "[Aerobic]") {
		t.Error("Electrotherapy printed after Aerobic")
	}
}

func TestRenderSheet_Empty(t *testing.T) {
	sheet := RenderSheet(&domain.PatientData{ID: "P", Name: "n", TherapistName: "t"}, catalog.Default(), time.UTC)
	if !strings.Contains(sheet, "No exercises prescribed yet.") {
		t.Errorf("empty sheet = %q", sheet)
	}
}
