package services

import (
	"fmt"
	"time"

	"github.com/english-site/english-site/internal/config"
	"github.com/english-site/english-site/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// CertificateService 签发课程完成证书。三个学习模块全部完成后，
// 为用户签一个HS256 token作为可校验的完成凭证。
type CertificateService struct {
	config *config.CertificateConfig
}

func NewCertificateService(config *config.CertificateConfig) *CertificateService {
	return &CertificateService{config: config}
}

type CertificateClaims struct {
	Username  string `json:"username"`
	QuizScore int    `json:"quiz_score"`
	jwt.RegisteredClaims
}

func (s *CertificateService) Eligible(progress *models.Progress) bool {
	return progress != nil && progress.Completed()
}

func (s *CertificateService) Issue(user *models.User, progress *models.Progress) (string, error) {
	if !s.Eligible(progress) {
		return "", ErrValidation
	}

	now := time.Now()
	claims := CertificateClaims{
		Username:  user.Username,
		QuizScore: progress.QuizScore,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Validity)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign certificate: %w", err)
	}
	return signed, nil
}

func (s *CertificateService) Verify(tokenString string) (*CertificateClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CertificateClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	claims, ok := token.Claims.(*CertificateClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid certificate token")
	}
	return claims, nil
}
