package company

import "errors"

var (
	// ErrCompanyNotFound は会社が存在しない、または論理削除済みの場合に返却されます。
	ErrCompanyNotFound = errors.New("company not found")
	// ErrRegistrationAlreadyExists は登録番号が他の会社と重複する場合に返却されます。
	ErrRegistrationAlreadyExists = errors.New("registration already exists")
)
