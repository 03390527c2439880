// Package model はドメインモデルを定義する。
package model

import (
	"regexp"
	"time"
)

// UserType はプラン生成を依頼するユーザーの役割を表す。
type UserType string

const (
	// UserTypeTeacher は教師。
	UserTypeTeacher UserType = "teacher"
	// UserTypeTherapist はセラピスト。
	UserTypeTherapist UserType = "therapist"
	// UserTypeParent は保護者。
	UserTypeParent UserType = "parent"
	// UserTypeDoctor は医師。
	UserTypeDoctor UserType = "doctor"
	// UserTypeMixed は複数の役割を兼ねるユーザー。customRoleが必須となる。
	UserTypeMixed UserType = "mixed"
	// UserTypeOther はその他の役割。customRoleが必須となる。
	UserTypeOther UserType = "other"
)

// ValidUserTypes は許可されるuserTypeの一覧。
var ValidUserTypes = []UserType{
	UserTypeTeacher, UserTypeTherapist, UserTypeParent,
	UserTypeDoctor, UserTypeMixed, UserTypeOther,
}

// RequiresCustomRole はcustomRoleが必須のユーザー種別かどうかを返す。
func (u UserType) RequiresCustomRole() bool {
	return u == UserTypeMixed || u == UserTypeOther
}

// Neurodiversity は固定語彙から選択されるニューロダイバーシティ特性を表す。
type Neurodiversity string

// ニューロダイバーシティの固定語彙
const (
	NDTdah        Neurodiversity = "tdah"
	NDAutism      Neurodiversity = "autism"
	NDDyslexia    Neurodiversity = "dyslexia"
	NDDyscalculia Neurodiversity = "dyscalculia"
	NDDysgraphia  Neurodiversity = "dysgraphia"
	NDGiftedness  Neurodiversity = "giftedness"
	NDTourette    Neurodiversity = "tourette"
	NDDyspraxia   Neurodiversity = "dyspraxia"
	NDSensory     Neurodiversity = "sensory"
	NDAnxiety     Neurodiversity = "anxiety"
	NDNone        Neurodiversity = "none"
	NDOther       Neurodiversity = "other"
	NDUnsure      Neurodiversity = "unsure"
)

// ValidNeurodiversities は許可されるneurodiversityの一覧。
var ValidNeurodiversities = []Neurodiversity{
	NDTdah, NDAutism, NDDyslexia, NDDyscalculia, NDDysgraphia,
	NDGiftedness, NDTourette, NDDyspraxia, NDSensory, NDAnxiety,
	NDNone, NDOther, NDUnsure,
}

// MenuOption はプロンプトテンプレートと必須フィールドを決める操作モードを表す。
type MenuOption string

const (
	// MenuAdapt は既存活動の適応。activityDescriptionが必須。
	MenuAdapt MenuOption = "adapt"
	// MenuCreate は新規活動の作成。themeとobjectivesが必須。
	MenuCreate MenuOption = "create"
	// MenuReview は既存活動のレビュー。activityDescriptionが必須。
	MenuReview MenuOption = "review"
	// MenuConsult は個別相談。activityDescriptionが必須。
	MenuConsult MenuOption = "consult"
	// MenuEvaluate は発達評価の支援。
	MenuEvaluate MenuOption = "evaluate"
	// MenuUniversal はユニバーサルデザインの提案。
	MenuUniversal MenuOption = "universal"
)

// ValidMenuOptions は許可されるmenuOptionの一覧。
var ValidMenuOptions = []MenuOption{
	MenuAdapt, MenuCreate, MenuReview, MenuConsult, MenuEvaluate, MenuUniversal,
}

// RequiresActivityDescription はactivityDescriptionが必須の操作モードかどうかを返す。
func (m MenuOption) RequiresActivityDescription() bool {
	return m == MenuAdapt || m == MenuReview || m == MenuConsult
}

// RequiresThemeAndObjectives はthemeとobjectivesが必須の操作モードかどうかを返す。
func (m MenuOption) RequiresThemeAndObjectives() bool {
	return m == MenuCreate
}

// OutputFormat は生成プランの出力構成を表す。
type OutputFormat string

const (
	// FormatPractical は実践重視の簡易フォーマット。
	FormatPractical OutputFormat = "practical"
	// FormatComplete は全セクションを含む完全フォーマット。
	FormatComplete OutputFormat = "complete"
	// FormatNDPlus は強みに焦点を当てたフォーマット。
	FormatNDPlus OutputFormat = "ndplus"
	// FormatSensory は感覚プロファイル中心のフォーマット。
	FormatSensory OutputFormat = "sensory"
	// FormatTraffic は信号機方式（緑・黄・赤）のフォーマット。
	FormatTraffic OutputFormat = "traffic"
)

// ValidOutputFormats は許可されるoutputFormatの一覧。
var ValidOutputFormats = []OutputFormat{
	FormatPractical, FormatComplete, FormatNDPlus, FormatSensory, FormatTraffic,
}

// ValidEnvironments は許可されるenvironmentsの一覧。
var ValidEnvironments = []string{
	"Casa", "Escuela/Trabajo", "Espacios públicos", "Terapia/Consultorio",
}

// sessionIDPattern はセッションIDの形式契約。
// nd_session_<unixミリ秒>_<ランダムトークン> の形式のみを受け付ける。
var sessionIDPattern = regexp.MustCompile(`^nd_session_\d+_[a-z0-9]+$`)

// ValidSessionID はセッションIDが形式契約を満たすかどうかを返す。
// ルックアップの前に必ずこの検証を通すこと。
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// PlanRequest は検証済みのプラン生成リクエストを表す。
// 上流のバリデーション層を通過した後にのみ構築される。
type PlanRequest struct {
	UserType         UserType
	CustomRole       string
	Neurodiversities []Neurodiversity
	PriorityND       Neurodiversity // 空の場合は優先指定なし
	MenuOption       MenuOption
	OutputFormat     OutputFormat

	// menuOptionに応じた条件付き必須フィールド
	ActivityDescription string
	Theme               string
	Objectives          string

	AgeGroup string

	// 任意の補足フィールド
	Sensitivities   string
	SkillsCheck     bool
	Environments    []string
	Caregivers      bool
	TimeConstraints string
	UrgentAspects   string

	// 再生成時のみ使用される追加コンテキスト
	AdditionalContext string
}

// Section は生成プランの1セクションを表す。
type Section struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// PlanSession は1回のユーザーインタラクション系列を表す。
// セッションIDはサーバー側で発行され、作成後は不変。
type PlanSession struct {
	SessionID         string
	Request           PlanRequest
	GeneratedSections []Section
	Title             string
	DemoMode          bool
	CreatedAt         time.Time
	LastAccessedAt    time.Time
	GenerationCount   int
}

// GenerationResult は呼び出し元に返す結果エンベロープ。呼び出しごとに新規構築される。
type GenerationResult struct {
	Success   bool            `json:"success"`
	SessionID string          `json:"sessionId,omitempty"`
	Data      *GenerationData `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Code      string          `json:"code,omitempty"`
	Metadata  *ResultMetadata `json:"metadata,omitempty"`
}

// GenerationData は生成されたプラン本体。
type GenerationData struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// ResultMetadata は結果エンベロープのメタデータ。
type ResultMetadata struct {
	GeneratedAt      time.Time `json:"generatedAt"`
	ProcessingTimeMs int64     `json:"processingTimeMs"`
	DemoMode         bool      `json:"demoMode"`
	OutputFormat     string    `json:"outputFormat"`
}

// Feedback はセッションに対するユーザーフィードバックを表す。
// 生成動作には影響せず、集計レポートのために保持する。
type Feedback struct {
	ID              string
	SessionID       string
	Rating          int
	Comments        string
	HelpfulSections []string
	Improvements    string
	UserType        UserType
	OutputFormat    OutputFormat
	CreatedAt       time.Time
}
