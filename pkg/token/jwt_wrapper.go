package token

import "video_pipeline_service/pkg/config"

// 這個變數會在測試時被覆蓋
var (
	GenerateJWTFunc = GenerateJWT
	ParseJWTFunc    = ParseJWT
)

// GenerateJWTWrapper 讓 accountUseCase test 可替換簽發流程, issuer is the api gateway service name
func GenerateJWTWrapper(accountID, role string) (string, error) {
	return GenerateJWTFunc(accountID, role, config.EnvConfig.APIGateway)
}

// ParseJWTWrapper 讓 middleware test 可替換解析流程
func ParseJWTWrapper(t string) (*Claims, error) {
	return ParseJWTFunc(t)
}
