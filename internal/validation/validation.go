// Package validation はリクエスト入力の検証と、フィールド単位のエラーメッセージ生成を提供する。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/taskman/internal/model"
)

// FieldErrors はJSONフィールド名ごとのエラーメッセージ。
type FieldErrors map[string]string

// Err はエラーがあればバリデーションエラーを、なければnilを返す。
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return model.NewValidationError(map[string]string(fe))
}

// Validator はgo-playground/validatorのラッパー。
// エラーのフィールド名にはjsonタグの名前を使用する。
type Validator struct {
	v *validator.Validate
}

// New はカスタムルール（isodate, taskstatus）を登録したValidatorを生成する。
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// エラーは登録時の固定タグのみのため無視できる
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("taskstatus", func(fl validator.FieldLevel) bool {
		return model.TaskStatus(fl.Field().String()).Valid()
	})

	return &Validator{v: v}
}

// Struct は構造体のvalidateタグを検証し、フィールド単位のエラーを返す。
func (v *Validator) Struct(s any) FieldErrors {
	errs := FieldErrors{}
	err := v.v.Struct(s)
	if err == nil {
		return errs
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs["_"] = err.Error()
		return errs
	}
	for _, fe := range verrs {
		if _, exists := errs[fe.Field()]; !exists {
			errs[fe.Field()] = message(fe.Tag(), fe.Param())
		}
	}
	return errs
}

// Var は単一の値をtagで検証し、失敗した場合はerrsにfieldのメッセージを追加する。
func (v *Validator) Var(errs FieldErrors, field string, value any, tag string) {
	err := v.v.Var(value, tag)
	if err == nil {
		return
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		errs[field] = message(verrs[0].Tag(), verrs[0].Param())
		return
	}
	errs[field] = err.Error()
}

// message はvalidatorのタグに対応する利用者向けメッセージを返す。
func message(tag, param string) string {
	switch tag {
	case "required":
		return "必須項目です。"
	case "min":
		return fmt.Sprintf("%s文字以上で入力してください。", param)
	case "max":
		return fmt.Sprintf("%s文字以内で入力してください。", param)
	case "email":
		return "メールアドレスの形式が正しくありません。"
	case "isodate":
		return "日付はYYYY-MM-DD形式またはRFC 3339形式で指定してください。"
	case "taskstatus":
		return "ステータスは todo、in-progress、done のいずれかを指定してください。"
	default:
		return fmt.Sprintf("入力値が不正です（%s）。", tag)
	}
}

// ParseDate はISO-8601の日付（YYYY-MM-DD）またはRFC 3339の日時を解析する。
// 日付のみの場合はUTCの0時として扱う。
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t.UTC(), nil
}
