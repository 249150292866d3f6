package auth

import (
	"vacation-rental-api/internal/domain"
	"vacation-rental-api/pkg/utils"
)

// Service 实现 domain.Credentials：bcrypt + JWT
type Service struct {
	JWT  *JWTer
	Cost int
}

func NewService(j *JWTer, cost int) *Service { return &Service{JWT: j, Cost: cost} }

func (s *Service) Hash(secret string) (string, error) { return utils.HashPassword(secret, s.Cost) }

func (s *Service) Verify(secret, hash string) bool { return utils.CheckPassword(secret, hash) }

func (s *Service) IssueToken(id domain.Identity) (string, error) {
	return s.JWT.Issue(id.UserID, string(id.Role))
}

func (s *Service) VerifyToken(token string) (domain.Identity, error) {
	c, err := s.JWT.Parse(token)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{UserID: c.UID, Role: domain.Role(c.Role)}, nil
}

var _ domain.Credentials = (*Service)(nil)
