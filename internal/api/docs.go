package api

// @title AQuant API
// @version 1.0
// @description A股买卖点分析服务API：指标计算、信号合成、策略回测与综合评分

// @contact.name API Support

// @license.name MIT

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @tag.name auth
// @tag.description 账号注册登录与令牌管理

// @tag.name analysis
// @tag.description 单票分析、策略列表与股票搜索

// @tag.name batch
// @tag.description 批量分析任务提交与进度查询

// @tag.name system
// @tag.description 健康检查与运行状态
