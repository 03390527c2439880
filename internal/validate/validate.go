// Package validate はプラン生成リクエストの検証とサニタイズを行う。
// 検証を通過した入力のみがmodel.PlanRequestとして下流に渡される。
package validate

import (
	"fmt"
	"strings"

	"github.com/hitoshi/ndassist/internal/model"
)

// フィールドごとの長さ上限（文字数）。超過は拒否し、切り詰めは行わない。
const (
	maxCustomRole          = 100
	maxTheme               = 200
	maxObjectives          = 1000
	maxAgeGroup            = 100
	maxTimeConstraints     = 500
	maxSensitivities       = 1000
	maxUrgentAspects       = 1000
	maxAdditionalContext   = 1000
	maxActivityDescription = 2000
)

// リストフィールドの要素数上限。
const (
	maxNeurodiversities = 5
	maxEnvironments     = 4
)

// RawRequest はクライアントから受信した未検証のリクエストボディ。
type RawRequest struct {
	UserType         string   `json:"userType"`
	CustomRole       string   `json:"customRole,omitempty"`
	Neurodiversities []string `json:"neurodiversities"`
	PriorityND       string   `json:"priorityND,omitempty"`
	MenuOption       string   `json:"menuOption"`
	OutputFormat     string   `json:"outputFormat"`

	ActivityDescription string `json:"activityDescription,omitempty"`
	Theme               string `json:"theme,omitempty"`
	Objectives          string `json:"objectives,omitempty"`

	AgeGroup string `json:"ageGroup"`

	Sensitivities   string   `json:"sensitivities,omitempty"`
	SkillsCheck     bool     `json:"skillsCheck,omitempty"`
	Environments    []string `json:"environments,omitempty"`
	Caregivers      bool     `json:"caregivers,omitempty"`
	TimeConstraints string   `json:"timeConstraints,omitempty"`
	UrgentAspects   string   `json:"urgentAspects,omitempty"`

	AdditionalContext string `json:"additionalContext,omitempty"`
}

// FieldError は1つのフィールドに対する検証エラー。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors は検証エラーの集合。errorインターフェースを実装する。
type Errors []FieldError

// Error は全フィールドエラーを1行に連結して返す。
func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(parts, "; ")
}

// Validator はリクエストの検証とサニタイズを行う。
type Validator struct {
	sanitizer Sanitizer
}

// NewValidator はValidatorを生成する。
func NewValidator(sanitizer Sanitizer) *Validator {
	return &Validator{sanitizer: sanitizer}
}

// Validate は未検証リクエストを検証し、正規化済みのPlanRequestを返す。
// 全フィールドを検証してからまとめてエラーを返す（最初のエラーで打ち切らない）。
// 自由記述フィールドはHTMLタグを除去した上でPlanRequestに格納される。
func (v *Validator) Validate(raw *RawRequest) (*model.PlanRequest, Errors) {
	var errs Errors

	userType := model.UserType(strings.TrimSpace(raw.UserType))
	if userType == "" {
		errs = append(errs, FieldError{"userType", "el tipo de usuario es obligatorio"})
	} else if !containsUserType(model.ValidUserTypes, userType) {
		errs = append(errs, FieldError{"userType", fmt.Sprintf("tipo de usuario no válido: %s", userType)})
	}

	customRole := v.clean(raw.CustomRole, "customRole", maxCustomRole, &errs)
	if userType.RequiresCustomRole() && customRole == "" {
		errs = append(errs, FieldError{"customRole", "el rol personalizado es obligatorio para este tipo de usuario"})
	}

	nds, priorityND := v.validateNeurodiversities(raw, &errs)

	menuOption := model.MenuOption(strings.TrimSpace(raw.MenuOption))
	if menuOption == "" {
		errs = append(errs, FieldError{"menuOption", "la opción de menú es obligatoria"})
	} else if !containsMenuOption(model.ValidMenuOptions, menuOption) {
		errs = append(errs, FieldError{"menuOption", fmt.Sprintf("opción de menú no válida: %s", menuOption)})
	}

	outputFormat := model.OutputFormat(strings.TrimSpace(raw.OutputFormat))
	if outputFormat == "" {
		errs = append(errs, FieldError{"outputFormat", "el formato de salida es obligatorio"})
	} else if !containsOutputFormat(model.ValidOutputFormats, outputFormat) {
		errs = append(errs, FieldError{"outputFormat", fmt.Sprintf("formato de salida no válido: %s", outputFormat)})
	}

	activityDescription := v.clean(raw.ActivityDescription, "activityDescription", maxActivityDescription, &errs)
	if menuOption.RequiresActivityDescription() && activityDescription == "" {
		errs = append(errs, FieldError{"activityDescription", "la descripción de la actividad es obligatoria para esta opción"})
	}

	theme := v.clean(raw.Theme, "theme", maxTheme, &errs)
	objectives := v.clean(raw.Objectives, "objectives", maxObjectives, &errs)
	if menuOption.RequiresThemeAndObjectives() {
		if theme == "" {
			errs = append(errs, FieldError{"theme", "el tema es obligatorio para crear una actividad"})
		}
		if objectives == "" {
			errs = append(errs, FieldError{"objectives", "los objetivos son obligatorios para crear una actividad"})
		}
	}

	ageGroup := v.clean(raw.AgeGroup, "ageGroup", maxAgeGroup, &errs)
	if ageGroup == "" {
		errs = append(errs, FieldError{"ageGroup", "el grupo de edad es obligatorio"})
	}

	environments := v.validateEnvironments(raw.Environments, &errs)

	req := &model.PlanRequest{
		UserType:            userType,
		CustomRole:          customRole,
		Neurodiversities:    nds,
		PriorityND:          priorityND,
		MenuOption:          menuOption,
		OutputFormat:        outputFormat,
		ActivityDescription: activityDescription,
		Theme:               theme,
		Objectives:          objectives,
		AgeGroup:            ageGroup,
		Sensitivities:       v.clean(raw.Sensitivities, "sensitivities", maxSensitivities, &errs),
		SkillsCheck:         raw.SkillsCheck,
		Environments:        environments,
		Caregivers:          raw.Caregivers,
		TimeConstraints:     v.clean(raw.TimeConstraints, "timeConstraints", maxTimeConstraints, &errs),
		UrgentAspects:       v.clean(raw.UrgentAspects, "urgentAspects", maxUrgentAspects, &errs),
		AdditionalContext:   v.clean(raw.AdditionalContext, "additionalContext", maxAdditionalContext, &errs),
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return req, nil
}

// validateNeurodiversities は特性リストと優先特性を検証する。
// 優先特性は選択済みリストに含まれていなければならない。
func (v *Validator) validateNeurodiversities(raw *RawRequest, errs *Errors) ([]model.Neurodiversity, model.Neurodiversity) {
	if len(raw.Neurodiversities) == 0 {
		*errs = append(*errs, FieldError{"neurodiversities", "debe seleccionar al menos una neurodivergencia"})
		return nil, ""
	}
	// 上限は重複除去前のリストに対して適用する
	if len(raw.Neurodiversities) > maxNeurodiversities {
		*errs = append(*errs, FieldError{"neurodiversities", fmt.Sprintf("no puede seleccionar más de %d neurodivergencias", maxNeurodiversities)})
		return nil, ""
	}

	seen := make(map[model.Neurodiversity]bool, len(raw.Neurodiversities))
	nds := make([]model.Neurodiversity, 0, len(raw.Neurodiversities))
	for _, s := range raw.Neurodiversities {
		nd := model.Neurodiversity(strings.TrimSpace(s))
		if !containsND(model.ValidNeurodiversities, nd) {
			*errs = append(*errs, FieldError{"neurodiversities", fmt.Sprintf("neurodivergencia no válida: %s", nd)})
			continue
		}
		if seen[nd] {
			continue
		}
		seen[nd] = true
		nds = append(nds, nd)
	}

	priorityND := model.Neurodiversity(strings.TrimSpace(raw.PriorityND))
	if priorityND != "" && !seen[priorityND] {
		*errs = append(*errs, FieldError{"priorityND", "la prioridad debe estar entre las neurodivergencias seleccionadas"})
		priorityND = ""
	}
	return nds, priorityND
}

// validateEnvironments は環境リストを固定語彙に対して検証し、重複を除去する。
func (v *Validator) validateEnvironments(raw []string, errs *Errors) []string {
	if len(raw) > maxEnvironments {
		*errs = append(*errs, FieldError{"environments", fmt.Sprintf("no puede seleccionar más de %d entornos", maxEnvironments)})
		return nil
	}

	seen := make(map[string]bool, len(raw))
	var environments []string
	for _, env := range raw {
		env = strings.TrimSpace(env)
		if env == "" {
			continue
		}
		if !containsString(model.ValidEnvironments, env) {
			*errs = append(*errs, FieldError{"environments", fmt.Sprintf("entorno no válido: %s", env)})
			continue
		}
		if seen[env] {
			continue
		}
		seen[env] = true
		environments = append(environments, env)
	}
	return environments
}

// clean はフィールドをサニタイズして長さ上限を検証する。
func (v *Validator) clean(value, field string, max int, errs *Errors) string {
	cleaned := strings.TrimSpace(v.sanitizer.Sanitize(value))
	if len(cleaned) > max {
		*errs = append(*errs, FieldError{field, fmt.Sprintf("supera el máximo de %d caracteres", max)})
		return ""
	}
	return cleaned
}

func containsUserType(valid []model.UserType, v model.UserType) bool {
	for _, x := range valid {
		if x == v {
			return true
		}
	}
	return false
}

func containsND(valid []model.Neurodiversity, v model.Neurodiversity) bool {
	for _, x := range valid {
		if x == v {
			return true
		}
	}
	return false
}

func containsMenuOption(valid []model.MenuOption, v model.MenuOption) bool {
	for _, x := range valid {
		if x == v {
			return true
		}
	}
	return false
}

func containsOutputFormat(valid []model.OutputFormat, v model.OutputFormat) bool {
	for _, x := range valid {
		if x == v {
			return true
		}
	}
	return false
}

func containsString(valid []string, v string) bool {
	for _, x := range valid {
		if x == v {
			return true
		}
	}
	return false
}
