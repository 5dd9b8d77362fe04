package account

import "github.com/go-playground/validator/v10"

var validate = validator.New(validator.WithRequiredStructEnabled())

// 文字数は Unicode のコードポイント単位で数える
const passwordRule = "min=10,max=32"

type userInput struct {
	Username string `validate:"min=3,max=20"`
	Password string `validate:"min=10,max=32"`
}

// IsValidUser はユーザー名とパスワードが長さの条件を満たすかを返します。
func IsValidUser(username, password string) bool {
	return validate.Struct(userInput{Username: username, Password: password}) == nil
}

// isValidPassword はパスワード単体の長さを検証します。
func isValidPassword(password string) bool {
	return validate.Var(password, passwordRule) == nil
}
