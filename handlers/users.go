package handlers

import (
	"fmt"
	"io"
	"net/http"

	"grocery-delivery-api/cache"
	"grocery-delivery-api/middleware"
	"grocery-delivery-api/models"
	"grocery-delivery-api/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserHandler struct {
	DB      *gorm.DB
	Cache   cache.Service
	Uploads storage.Uploader
}

// GetProfile returns the authenticated user's profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": middleware.CurrentUser(c)})
}

type UpdateProfileRequest struct {
	Name    string          `json:"name"`
	Phone   string          `json:"phone"`
	Address *models.Address `json:"address"`
}

// UpdateProfile updates name, phone and address
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Phone != "" {
		updates["phone"] = req.Phone
	}
	if req.Address != nil {
		user.Address = *req.Address
		updates["address"] = user.Address
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	if err := h.DB.Model(user).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}
	h.dropSession(c, user.ID)

	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": user})
}

// UploadAvatar stores a profile picture through the blob layer.
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	user := middleware.CurrentUser(c)

	file, header, err := c.Request.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, 5<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	key := fmt.Sprintf("avatars/%d/%s", user.ID, uuid.NewString())
	url, err := h.Uploads.Upload(c.Request.Context(), key, header.Header.Get("Content-Type"), data)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store avatar"})
		return
	}

	if err := h.DB.Model(user).Update("avatar_url", url).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}
	h.dropSession(c, user.ID)

	c.JSON(http.StatusOK, gin.H{"message": "Avatar updated", "avatar_url": url})
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6"`
}

// ChangePassword verifies the current password before replacing it.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Current password is incorrect"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}
	if err := h.DB.Model(user).Update("password_hash", string(hash)).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change password"})
		return
	}
	h.dropSession(c, user.ID)

	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

// ListDeliveryPartners returns active delivery partners, for store owners
// assigning deliveries.
func (h *UserHandler) ListDeliveryPartners(c *gin.Context) {
	var partners []models.User
	h.DB.Where("role = ? AND is_active = ?", models.RoleDeliveryPartner, true).Find(&partners)

	out := make([]gin.H, len(partners))
	for i := range partners {
		out[i] = publicUser(&partners[i])
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "delivery_partners": out})
}

// AdminListUsers returns all users — admin only
func (h *UserHandler) AdminListUsers(c *gin.Context) {
	page, limit, offset := pagination(c)

	query := h.DB.Model(&models.User{})
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if active := c.Query("active"); active == "true" {
		query = query.Where("is_active = ?", true)
	}

	var total int64
	query.Count(&total)

	var users []models.User
	query.Order("created_at desc").Offset(offset).Limit(limit).Find(&users)

	c.JSON(http.StatusOK, gin.H{"users": users, "pagination": pageMeta(page, limit, total)})
}

// AdminGetUser returns one user — admin only
func (h *UserHandler) AdminGetUser(c *gin.Context) {
	var user models.User
	if err := h.DB.First(&user, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type AdminUpdateUserRequest struct {
	Name     string           `json:"name"`
	Role     *models.UserRole `json:"role"`
	IsActive *bool            `json:"is_active"`
}

// AdminUpdateUser updates name, role, and active flag — admin only
func (h *UserHandler) AdminUpdateUser(c *gin.Context) {
	var user models.User
	if err := h.DB.First(&user, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var req AdminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Role != nil {
		if !models.ValidRole(*req.Role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
			return
		}
		updates["role"] = *req.Role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if err := h.DB.Model(&user).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}
	h.dropSession(c, user.ID)

	c.JSON(http.StatusOK, gin.H{"message": "User updated", "user": user})
}

// AdminDeactivateUser soft-deactivates an account; users are never hard
// deleted.
func (h *UserHandler) AdminDeactivateUser(c *gin.Context) {
	var user models.User
	if err := h.DB.First(&user, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if err := h.DB.Model(&user).Update("is_active", false).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate user"})
		return
	}
	h.dropSession(c, user.ID)

	c.JSON(http.StatusOK, gin.H{"message": "User deactivated", "user_id": user.ID})
}

func (h *UserHandler) dropSession(c *gin.Context, userID uint) {
	if h.Cache == nil {
		return
	}
	err := h.Cache.Delete(c.Request.Context(), cache.KindSession, idKey(userID))
	advise(c.Request.Context(), "session cache delete failed", err)
}
