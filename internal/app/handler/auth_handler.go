package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/sirupsen/logrus"

	"mutuelle/internal/app/auth"
	"mutuelle/internal/app/config"
	"mutuelle/internal/app/ds"
	"mutuelle/internal/app/dto"
	"mutuelle/internal/app/middleware"
	"mutuelle/internal/app/redis"
	"mutuelle/internal/app/repository"
	"mutuelle/internal/app/role"
)

const tokenIssuer = "mutuelle"

type AuthHandler struct {
	Repository  *repository.Repository
	RedisClient *redis.Client
	Config      *config.Config
}

func NewAuthHandler(r *repository.Repository, redisClient *redis.Client, config *config.Config) *AuthHandler {
	return &AuthHandler{
		Repository:  r,
		RedisClient: redisClient,
		Config:      config,
	}
}

// RegisterUser регистрация нового клиента
// @Summary Регистрация пользователя
// @Description Создание клиента личного кабинета. Сотрудники брокера заводятся через cmd/migrate.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Данные для регистрации"
// @Success 201 {object} dto.LoginResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/auth/register [post]
func (h *AuthHandler) RegisterUser(ctx *gin.Context) {
	var request dto.RegisterRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		h.errorHandler(ctx, http.StatusBadRequest, err)
		return
	}

	exists, err := h.Repository.UserExistsByEmail(request.Email)
	if err != nil {
		logrus.Error("Error checking user: ", err)
		h.errorHandler(ctx, http.StatusInternalServerError, errors.New("ошибка регистрации пользователя"))
		return
	}
	if exists {
		h.errorHandler(ctx, http.StatusConflict, errors.New("пользователь с таким email уже существует"))
		return
	}

	hashedPassword, err := auth.HashPassword(request.Password)
	if err != nil {
		h.errorHandler(ctx, http.StatusInternalServerError, err)
		return
	}

	user, err := h.Repository.CreateUser(request.Email, hashedPassword, request.FullName, role.Customer)
	if err != nil {
		logrus.Error("Error creating user: ", err)
		h.errorHandler(ctx, http.StatusInternalServerError, errors.New("ошибка регистрации пользователя"))
		return
	}
	if request.Phone != "" {
		if err := h.Repository.UpdateUser(user.ID, nil, nil, &request.Phone); err != nil {
			logrus.Warnf("failed to save phone for user %d: %v", user.ID, err)
		}
		user.Phone = request.Phone
	}

	resp, err := h.issueToken(user)
	if err != nil {
		h.errorHandler(ctx, http.StatusInternalServerError, err)
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// LoginUser аутентификация пользователя
// @Summary Вход в систему
// @Description Аутентификация пользователя с возвратом JWT токена
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Данные для входа"
// @Success 200 {object} dto.LoginResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) LoginUser(ctx *gin.Context) {
	var request dto.LoginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		h.errorHandler(ctx, http.StatusBadRequest, err)
		return
	}

	user, err := h.Repository.GetUserByEmail(request.Email)
	if err != nil {
		h.errorHandler(ctx, http.StatusUnauthorized, errors.New("неверный email или пароль"))
		return
	}
	ok, err := auth.CheckPassword(user.Password, request.Password)
	if err != nil || !ok {
		h.errorHandler(ctx, http.StatusUnauthorized, errors.New("неверный email или пароль"))
		return
	}

	resp, err := h.issueToken(user)
	if err != nil {
		h.errorHandler(ctx, http.StatusInternalServerError, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// LogoutUser выход пользователя из системы
// @Summary Выход из системы
// @Description Завершение сеанса пользователя с добавлением токена в blacklist
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/auth/logout [post]
func (h *AuthHandler) LogoutUser(ctx *gin.Context) {
	tokenString := middleware.BearerToken(ctx)
	if tokenString == "" {
		h.errorHandler(ctx, http.StatusUnauthorized, errors.New("authorization header missing"))
		return
	}

	claims := &ds.JWTClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(h.Config.JWT.Token), nil
	})
	if err != nil {
		h.errorHandler(ctx, http.StatusUnauthorized, err)
		return
	}

	// Токен в blacklist до истечения его срока
	ttl := time.Until(time.Unix(claims.ExpiresAt, 0))
	if ttl > 0 {
		if err := h.RedisClient.WriteJWTToBlacklist(ctx.Request.Context(), tokenString, ttl); err != nil {
			h.errorHandler(ctx, http.StatusInternalServerError, err)
			return
		}
	}

	ctx.JSON(http.StatusOK, dto.SuccessResponse{
		Status:  "success",
		Message: "пользователь успешно вышел из системы",
	})
}

// GetUserProfile получение профиля пользователя
// @Summary Получение профиля пользователя
// @Description Возвращает информацию о текущем пользователе
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.UserResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/auth/profile [get]
func (h *AuthHandler) GetUserProfile(ctx *gin.Context) {
	userID := ctx.GetUint(middleware.ContextUserID)
	if userID == 0 {
		h.errorHandler(ctx, http.StatusUnauthorized, errors.New("пользователь не авторизован"))
		return
	}

	user, err := h.Repository.GetUserByID(userID)
	if err != nil {
		h.errorHandler(ctx, http.StatusNotFound, errors.New("пользователь не найден"))
		return
	}

	ctx.JSON(http.StatusOK, toUserResponse(user))
}

// UpdateProfile обновление профиля
// @Summary Обновление профиля
// @Tags Authentication
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpdateUserRequest true "Новые данные"
// @Success 200 {object} dto.UserResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/auth/profile [put]
func (h *AuthHandler) UpdateProfile(ctx *gin.Context) {
	userID := ctx.GetUint(middleware.ContextUserID)
	if userID == 0 {
		h.errorHandler(ctx, http.StatusUnauthorized, errors.New("пользователь не авторизован"))
		return
	}

	var req dto.UpdateUserRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.errorHandler(ctx, http.StatusBadRequest, err)
		return
	}

	var fullName, password, phone *string
	if req.FullName != "" {
		fullName = &req.FullName
	}
	if req.Phone != "" {
		phone = &req.Phone
	}
	if req.Password != "" {
		hashed, err := auth.HashPassword(req.Password)
		if err != nil {
			h.errorHandler(ctx, http.StatusInternalServerError, err)
			return
		}
		password = &hashed
	}

	if err := h.Repository.UpdateUser(userID, fullName, password, phone); err != nil {
		logrus.Error("Error updating user: ", err)
		h.errorHandler(ctx, http.StatusInternalServerError, errors.New("ошибка обновления профиля"))
		return
	}

	user, err := h.Repository.GetUserByID(userID)
	if err != nil {
		h.errorHandler(ctx, http.StatusNotFound, errors.New("пользователь не найден"))
		return
	}
	ctx.JSON(http.StatusOK, toUserResponse(user))
}

// issueToken подписывает JWT для пользователя
func (h *AuthHandler) issueToken(user *ds.User) (dto.LoginResponse, error) {
	now := time.Now()
	token := jwt.NewWithClaims(h.Config.JWT.SigningMethod, ds.JWTClaims{
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(h.Config.JWT.ExpiresIn).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    tokenIssuer,
		},
		UserID: user.ID,
		Role:   role.Role(user.Role),
	})

	accessToken, err := token.SignedString([]byte(h.Config.JWT.Token))
	if err != nil {
		return dto.LoginResponse{}, err
	}

	return dto.LoginResponse{
		Token:     accessToken,
		TokenType: "Bearer",
		ExpiresIn: int(h.Config.JWT.ExpiresIn.Seconds()),
		User:      toUserResponse(user),
	}, nil
}

func toUserResponse(user *ds.User) dto.UserResponse {
	return dto.UserResponse{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Phone:    user.Phone,
		Role:     role.Role(user.Role).String(),
	}
}

// errorHandler централизованная обработка ошибок
func (h *AuthHandler) errorHandler(ctx *gin.Context, errorStatusCode int, err error) {
	logrus.Error(err.Error())
	ctx.JSON(errorStatusCode, dto.ErrorResponse{
		Status:  "fail",
		Message: err.Error(),
	})
}
