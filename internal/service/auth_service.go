package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/physioledger/internal/auth"
	"github.com/mmynk/physioledger/internal/middleware"
	"github.com/mmynk/physioledger/internal/models"
)

// AuthServiceName is the fully-qualified name of the auth service.
const AuthServiceName = "physioledger.v1.AuthService"

// Procedure paths of the auth service.
const (
	RegisterProcedure       = "/" + AuthServiceName + "/Register"
	LoginProcedure          = "/" + AuthServiceName + "/Login"
	LogoutProcedure         = "/" + AuthServiceName + "/Logout"
	GetCurrentUserProcedure = "/" + AuthServiceName + "/GetCurrentUser"
)

// AuthService registers and signs in practitioners. Each account owns its
// own ledger scope; requests without a token use the guest ledger.
type AuthService struct {
	authenticator auth.Authenticator
	users         auth.UserStorage
	jwtManager    *auth.JWTManager
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, users auth.UserStorage, jwtManager *auth.JWTManager, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		authenticator: authenticator,
		users:         users,
		jwtManager:    jwtManager,
		logger:        logger,
	}
}

// Handler returns the service's path prefix and handler. GetCurrentUser
// additionally requires a valid token.
func (s *AuthService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{Codec()}, opts...)
	authed := append(opts[:len(opts):len(opts)], connect.WithInterceptors(middleware.RequireAuth(s.jwtManager)))

	mux := http.NewServeMux()
	mux.Handle(RegisterProcedure, connect.NewUnaryHandler(RegisterProcedure, s.Register, opts...))
	mux.Handle(LoginProcedure, connect.NewUnaryHandler(LoginProcedure, s.Login, opts...))
	mux.Handle(LogoutProcedure, connect.NewUnaryHandler(LogoutProcedure, s.Logout, opts...))
	mux.Handle(GetCurrentUserProcedure, connect.NewUnaryHandler(GetCurrentUserProcedure, s.GetCurrentUser, authed...))
	return "/" + AuthServiceName + "/", mux
}

// Register creates a new user account.
func (s *AuthService) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[AuthResponse], error) {
	s.logger.Info("Register request", "email", req.Msg.Email)

	user, err := s.authenticator.Register(ctx, req.Msg.Email, req.Msg.DisplayName, req.Msg.Password)
	if err != nil {
		s.logger.Warn("Registration failed", "email", req.Msg.Email, "error", err)
		return nil, toConnectError(err)
	}

	res, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User registered successfully", "user_id", user.ID, "email", user.Email)
	return connect.NewResponse(res), nil
}

// Login authenticates a user and returns a JWT token.
func (s *AuthService) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[AuthResponse], error) {
	s.logger.Info("Login request", "email", req.Msg.Email)

	if req.Msg.Email == "" || req.Msg.Password == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, auth.ErrInvalidCredentials)
	}

	user, err := s.authenticator.Authenticate(ctx, req.Msg.Email, req.Msg.Password)
	if err != nil {
		s.logger.Warn("Login failed", "email", req.Msg.Email, "error", err)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidCredentials)
		}
		return nil, toConnectError(err)
	}

	res, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User logged in successfully", "user_id", user.ID, "email", user.Email)
	return connect.NewResponse(res), nil
}

// Logout is a no-op: tokens are stateless and discarded by the client.
func (s *AuthService) Logout(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[Empty], error) {
	s.logger.Info("Logout request", "user_id", middleware.GetUserID(ctx))
	return connect.NewResponse(&Empty{}), nil
}

// GetCurrentUser returns the authenticated user's account.
func (s *AuthService) GetCurrentUser(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[UserResponse], error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load user", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}
	if user == nil {
		// Token outlived the account.
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
	}
	return connect.NewResponse(&UserResponse{User: toUser(user)}), nil
}

func (s *AuthService) issue(user *models.User) (*AuthResponse, error) {
	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return &AuthResponse{User: toUser(user), Token: token}, nil
}
