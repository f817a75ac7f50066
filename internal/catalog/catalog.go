// Package catalog holds short informational descriptions of the diseases the
// classifier can predict.
package catalog

import (
	"sort"
	"strings"

	"github.com/symptom-dx-server/internal/domain"
)

// Entry is one catalog description.
type Entry struct {
	Disease     domain.DiseaseLabel `json:"disease"`
	Description string              `json:"description"`
}

// Label spellings match the training dataset, typos included.
var descriptions = map[string]string{
	"Fungal infection": "A fungal infection is a skin disease caused by a fungus. Common symptoms include itching, skin rash, and skin eruptions.",
	"Allergy": "An allergy is an immune system response to a foreign substance. Symptoms include sneezing, shivering, and chills.",
	"GERD": "Gastroesophageal reflux disease (GERD) occurs when stomach acid frequently flows back into the esophagus. Symptoms include stomach pain, acidity, and vomiting.",
	"Chronic cholestasis": "A condition where bile flow from the liver is blocked. Symptoms include vomiting, yellowish skin, and dark urine.",
	"Drug Reaction": "An adverse reaction to medication. Symptoms include skin rash, stomach pain, and burning urination.",
	"Peptic ulcer diseae": "Sores that develop on the lining of the stomach or small intestine. Symptoms include vomiting, headache, and back pain.",
	"AIDS": "Acquired immunodeficiency syndrome affects the immune system. Symptoms include muscle wasting, sunken eyes, and malaise.",
	"Diabetes": "A metabolic disease that causes high blood sugar. Symptoms include fatigue, weight loss, and increased appetite.",
	"Gastroenteritis": "Inflammation of the stomach and intestines. Symptoms include vomiting, dehydration, and indigestion.",
	"Bronchial Asthma": "A condition that affects the airways in the lungs. Symptoms include fatigue, high fever, and breathlessness.",
	"Hypertension": "High blood pressure. Symptoms include headache, dizziness, and chest pain.",
	"Migraine": "A type of headache that can cause severe throbbing pain. Symptoms include acidity, headache, and visual disturbances.",
	"Cervical spondylosis": "A general term for age-related wear and tear affecting the spinal disks in the neck. Symptoms include back pain, neck pain, and dizziness.",
	"Paralysis (brain hemorrhage)": "Loss of muscle function due to brain hemorrhage. Symptoms include vomiting, headache, and weakness.",
	"Jaundice": "Yellowing of the skin and eyes due to high bilirubin levels. Symptoms include vomiting, fatigue, and yellowish skin.",
	"Malaria": "A mosquito-borne infectious disease. Symptoms include chills, vomiting, and high fever.",
	"Chicken pox": "A highly contagious viral infection. Symptoms include skin rash, fatigue, and high fever.",
	"Dengue": "A mosquito-borne viral infection. Symptoms include chills, vomiting, and high fever.",
	"Typhoid": "A bacterial infection spread through contaminated food and water. Symptoms include chills, vomiting, and high fever.",
	"hepatitis A": "A highly contagious liver infection. Symptoms include joint pain, vomiting, and yellowish skin.",
	"Hepatitis B": "A serious liver infection caused by the hepatitis B virus. Symptoms include fatigue, vomiting, and yellowish skin.",
	"Hepatitis C": "A viral infection that causes liver inflammation. Symptoms include fatigue, vomiting, and yellowish skin.",
	"Hepatitis D": "A serious liver disease caused by the hepatitis D virus. Symptoms include joint pain, vomiting, and yellowish skin.",
	"Hepatitis E": "A liver disease caused by the hepatitis E virus. Symptoms include joint pain, vomiting, and yellowish skin.",
	"Alcoholic hepatitis": "Liver inflammation caused by drinking alcohol. Symptoms include vomiting, headache, and yellowish skin.",
	"Tuberculosis": "A serious infectious disease that mainly affects the lungs. Symptoms include chills, vomiting, and high fever.",
	"Common Cold": "A viral infectious disease of the upper respiratory tract. Symptoms include chills, fatigue, and high fever.",
	"Pneumonia": "Infection that inflames the air sacs in one or both lungs. Symptoms include chills, fatigue, and high fever.",
	"Dimorphic hemmorhoids(piles)": "Swollen veins in the rectum and anus. Symptoms include fatigue, sweating, and dehydration.",
	"Heart attack": "A medical emergency that occurs when blood flow to the heart is blocked. Symptoms include vomiting, sweating, and chest pain.",
	"Varicose veins": "Enlarged, twisted veins that commonly occur in the legs. Symptoms include fatigue, swelling, and pain.",
	"Hypothyroidism": "A condition where the thyroid gland doesn't produce enough thyroid hormone. Symptoms include fatigue, weight gain, and cold hands.",
	"Hyperthyroidism": "A condition where the thyroid gland produces too much thyroid hormone. Symptoms include fatigue, weight loss, and anxiety.",
	"Hypoglycemia": "A condition where blood sugar levels are lower than normal. Symptoms include vomiting, headache, and dizziness.",
	"Osteoarthristis": "A degenerative joint disease that affects cartilage. Symptoms include joint pain, muscle weakness, and stiffness.",
	"Arthritis": "Inflammation of one or more joints. Symptoms include fatigue, joint pain, and swelling.",
	"(vertigo) Paroymsal  Positional Vertigo": "A condition that causes brief episodes of mild to intense dizziness. Symptoms include vomiting, headache, and dizziness.",
	"Acne": "A skin condition that occurs when hair follicles become plugged with oil and dead skin cells. Symptoms include skin rash and pimples.",
	"Urinary tract infection": "An infection in any part of the urinary system. Symptoms include burning urination and frequent urination.",
	"Psoriasis": "A skin disorder that causes skin cells to multiply up to 10 times faster than normal. Symptoms include skin rash and itching.",
	"Impetigo": "A highly contagious skin infection that mainly affects infants and children. Symptoms include skin rash and high fever.",
}

// normalized maps folded labels back to their canonical spelling.
var normalized = func() map[string]string {
	m := make(map[string]string, len(descriptions))
	for label := range descriptions {
		m[fold(label)] = label
	}
	return m
}()

func fold(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Describe looks a label up exactly, then ignoring case and repeated spaces.
func Describe(label string) (Entry, bool) {
	if d, ok := descriptions[label]; ok {
		return Entry{Disease: domain.DiseaseLabel(label), Description: d}, true
	}
	canonical, ok := normalized[fold(label)]
	if !ok {
		return Entry{}, false
	}
	return Entry{Disease: domain.DiseaseLabel(canonical), Description: descriptions[canonical]}, true
}

// DescriptionFor returns the description or "" when the label is unknown.
func DescriptionFor(label domain.DiseaseLabel) string {
	e, _ := Describe(string(label))
	return e.Description
}

// List returns every entry sorted by label.
func List() []Entry {
	out := make([]Entry, 0, len(descriptions))
	for label, d := range descriptions {
		out = append(out, Entry{Disease: domain.DiseaseLabel(label), Description: d})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Disease < out[j].Disease })
	return out
}

// Len returns the number of catalog entries.
func Len() int {
	return len(descriptions)
}
