package membership

import (
	"context"
	"math"
	"time"

	"fitclass/internal/apperr"
	"fitclass/internal/db"
	"fitclass/internal/logger"
	"fitclass/internal/metrics"
	"fitclass/internal/policy"
	"fitclass/internal/wallet"

	"github.com/jmoiron/sqlx"
)

type MemberValidator interface {
	ValidateMember(ctx context.Context, memberID int) error
}

// Service owns the entitlement ledger: purchases, per-session consumption
// and restoration, and purchase-cancellation refunds.
type Service struct {
	repo     *Repository
	wallets  wallet.Repository
	members  MemberValidator
	rules    policy.Rules
	location *time.Location
}

func NewService(repo *Repository, wallets wallet.Repository, members MemberValidator, rules policy.Rules, location *time.Location) *Service {
	return &Service{
		repo:     repo,
		wallets:  wallets,
		members:  members,
		rules:    rules,
		location: location,
	}
}

// Purchase debits the wallet first, then issues the ledger entry. If
// issuance fails after the debit succeeded the payment is compensated back;
// the member never pays for a purchase that does not exist.
func (s *Service) Purchase(ctx context.Context, memberID int, req PurchaseRequest, now time.Time) (*Purchase, error) {
	if err := s.members.ValidateMember(ctx, memberID); err != nil {
		return nil, err
	}

	p, err := s.buildPurchase(memberID, req, now)
	if err != nil {
		return nil, err
	}

	if p.PriceCents > 0 {
		if err := s.wallets.AddTransaction(ctx, memberID, -p.PriceCents, wallet.TxMembershipPayment); err != nil {
			return nil, err
		}
	}

	if err := s.repo.InsertPurchase(ctx, p); err != nil {
		if p.PriceCents > 0 {
			if compErr := s.wallets.AddTransaction(ctx, memberID, p.PriceCents, wallet.TxCompensation); compErr != nil {
				logger.Error("Payment compensation failed",
					"member_id", memberID,
					"amount_cents", p.PriceCents,
					"error", compErr,
				)
			}
		}
		if db.IsUniqueViolation(err) {
			return nil, apperr.Wrap(apperr.Conflict, "trial already used", err)
		}
		return nil, err
	}

	logger.Info("Purchase issued",
		"purchase_id", p.ID,
		"member_id", memberID,
		"kind", p.Kind,
		"price_cents", p.PriceCents,
	)
	return p, nil
}

func (s *Service) buildPurchase(memberID int, req PurchaseRequest, now time.Time) (*Purchase, error) {
	start := now
	if req.StartDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", req.StartDate, s.location)
		if err != nil {
			return nil, apperr.New(apperr.PolicyViolation, "invalid start_date")
		}
		start = parsed
	}

	switch PurchaseKind(req.Kind) {
	case KindMembership:
		if req.DurationDays <= 0 {
			return nil, apperr.New(apperr.PolicyViolation, "duration_days is required for memberships")
		}
		if req.PriceCents <= 0 {
			return nil, apperr.New(apperr.PolicyViolation, "price_cents must be positive")
		}
		end := start.AddDate(0, 0, req.DurationDays)
		return &Purchase{
			MemberID:    memberID,
			Kind:        KindMembership,
			SessionType: SessionPaid,
			PriceCents:  req.PriceCents,
			StartDate:   start,
			EndDate:     &end,
		}, nil

	case KindSessionPack:
		if req.TotalSessions <= 0 {
			return nil, apperr.New(apperr.PolicyViolation, "total_sessions is required for session packs")
		}
		if req.PriceCents <= 0 {
			return nil, apperr.New(apperr.PolicyViolation, "price_cents must be positive")
		}
		total := req.TotalSessions
		return &Purchase{
			MemberID:      memberID,
			Kind:          KindSessionPack,
			SessionType:   SessionPaid,
			PriceCents:    req.PriceCents,
			TotalSessions: &total,
			StartDate:     start,
		}, nil

	case KindTrial:
		one := 1
		return &Purchase{
			MemberID:      memberID,
			Kind:          KindTrial,
			SessionType:   SessionFreeTrial,
			PriceCents:    0,
			TotalSessions: &one,
			StartDate:     start,
		}, nil

	default:
		return nil, apperr.New(apperr.PolicyViolation, "kind must be membership, session_pack or trial")
	}
}

// ConsumeSession debits one entitlement on the caller's transaction. The
// booking flow runs it before the booking insert, so a failed booking rolls
// the consumption back with the same commit.
func (s *Service) ConsumeSession(ctx context.Context, tx *sqlx.Tx, memberID int, asOf time.Time, reason string) (*SessionUse, SessionType, error) {
	p, err := s.repo.GetActivePurchaseForUpdate(ctx, tx, memberID, asOf)
	if err != nil {
		return nil, "", err
	}

	if p.TotalSessions != nil && p.UsedSessions >= *p.TotalSessions {
		return nil, "", apperr.New(apperr.PolicyViolation, "no sessions left on the active pack")
	}

	if err := s.repo.UpdateUsedSessions(ctx, tx, p.ID, p.UsedSessions+1); err != nil {
		return nil, "", err
	}

	use := &SessionUse{PurchaseID: p.ID, MemberID: memberID, Reason: reason}
	if err := s.repo.InsertSessionUse(ctx, tx, use); err != nil {
		return nil, "", err
	}
	return use, p.SessionType, nil
}

// RestoreSession credits an entitlement back, e.g. on free cancellation or
// trainer rejection. Penalty cancellations and no-shows never call it.
func (s *Service) RestoreSession(ctx context.Context, tx *sqlx.Tx, sessionID int, reason string) error {
	use, err := s.repo.GetSessionUseByID(ctx, sessionID)
	if err != nil {
		return err
	}

	p, err := s.repo.GetPurchaseForUpdate(ctx, tx, use.PurchaseID)
	if err != nil {
		return err
	}

	if err := s.repo.MarkSessionRestored(ctx, tx, sessionID, reason); err != nil {
		return err
	}
	if p.UsedSessions > 0 {
		if err := s.repo.UpdateUsedSessions(ctx, tx, p.ID, p.UsedSessions-1); err != nil {
			return err
		}
	}
	return nil
}

// SessionType resolves the kind of an already consumed session.
func (s *Service) SessionType(ctx context.Context, sessionID int) (SessionType, error) {
	use, err := s.repo.GetSessionUseByID(ctx, sessionID)
	if err != nil {
		return "", err
	}
	p, err := s.repo.GetPurchaseByID(ctx, use.PurchaseID)
	if err != nil {
		return "", err
	}
	return p.SessionType, nil
}

// CancelPurchase computes the refund and credits the wallet. A zero
// fraction still succeeds and returns zero; only the money outcome varies
// with elapsed time.
func (s *Service) CancelPurchase(ctx context.Context, memberID, purchaseID int, now time.Time) (*RefundResponse, error) {
	p, err := s.repo.GetPurchaseByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if p.MemberID != memberID {
		return nil, apperr.New(apperr.AccessDenied, "purchase belongs to another member")
	}
	if p.Status != PurchaseActive {
		return nil, apperr.Newf(apperr.InvalidState, "purchase is already %s", p.Status)
	}

	var fraction float64
	switch p.Kind {
	case KindMembership:
		fraction = s.rules.MembershipRefundFraction(now, p.StartDate)
	default:
		fraction = policy.SessionPackRefundFraction(p.UsedSessions)
	}

	refundCents := int64(math.Round(fraction * float64(p.PriceCents)))

	if err := s.repo.UpdatePurchaseStatus(ctx, purchaseID, PurchaseCancelled); err != nil {
		return nil, err
	}

	credited := false
	if refundCents > 0 {
		if err := s.wallets.AddTransaction(ctx, memberID, refundCents, wallet.TxRefund); err != nil {
			return nil, err
		}
		credited = true
	}

	metrics.RefundsTotal.WithLabelValues(string(p.Kind)).Inc()
	logger.Info("Purchase cancelled",
		"purchase_id", purchaseID,
		"member_id", memberID,
		"fraction", fraction,
		"refund_cents", refundCents,
	)

	return &RefundResponse{
		PurchaseID:   purchaseID,
		Fraction:     fraction,
		RefundCents:  refundCents,
		WalletCredit: credited,
	}, nil
}

func (s *Service) ListPurchases(ctx context.Context, memberID int) ([]Purchase, error) {
	return s.repo.ListPurchasesByMember(ctx, memberID)
}
