// Package docs 注册 swagger 文档，handlers 上的注释修改后用 swag init 重新生成
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
	"schemes": {{ marshal .Schemes }},
	"swagger": "2.0",
	"info": {
		"description": "{{escape .Description}}",
		"title": "{{.Title}}",
		"contact": {},
		"version": "{{.Version}}"
	},
	"host": "{{.Host}}",
	"basePath": "{{.BasePath}}",
	"paths": {
		"/api/auth/register": {
			"post": {
				"tags": [
					"用户认证"
				],
				"summary": "用户注册",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"parameters": [
					{
						"description": "请求体",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handlers.RegisterRequest"
						}
					}
				]
			}
		},
		"/api/auth/login": {
			"post": {
				"tags": [
					"用户认证"
				],
				"summary": "用户登录",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"parameters": [
					{
						"description": "请求体",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handlers.LoginRequest"
						}
					}
				]
			}
		},
		"/api/auth/demo": {
			"post": {
				"tags": [
					"用户认证"
				],
				"summary": "创建临时演示账号",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				}
			}
		},
		"/api/auth/logout": {
			"post": {
				"tags": [
					"用户认证"
				],
				"summary": "退出登录",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/auth/verify": {
			"get": {
				"tags": [
					"用户认证"
				],
				"summary": "校验 token",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/upload/files": {
			"post": {
				"tags": [
					"文件"
				],
				"summary": "上传文件",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "file",
						"name": "files",
						"in": "formData",
						"required": true
					}
				]
			},
			"get": {
				"tags": [
					"文件"
				],
				"summary": "我的文件",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/upload/download/{fileId}": {
			"get": {
				"tags": [
					"文件"
				],
				"summary": "下载文件",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"name": "fileId",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/upload/files/{fileId}": {
			"delete": {
				"tags": [
					"文件"
				],
				"summary": "删除文件",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"name": "fileId",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/upload/archive": {
			"post": {
				"tags": [
					"文件"
				],
				"summary": "打包下载",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"description": "请求体",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handlers.ArchiveRequest"
						}
					}
				]
			}
		},
		"/api/share/create": {
			"post": {
				"tags": [
					"分享"
				],
				"summary": "创建分享链接",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"description": "请求体",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handlers.CreateShareRequest"
						}
					}
				]
			}
		},
		"/api/share/my": {
			"get": {
				"tags": [
					"分享"
				],
				"summary": "我的分享",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/share/{token}": {
			"get": {
				"tags": [
					"分享"
				],
				"summary": "获取分享详情",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "token",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/share/{token}/download": {
			"post": {
				"tags": [
					"分享"
				],
				"summary": "下载分享的文件",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"parameters": [
					{
						"type": "string",
						"name": "token",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/share/{shareId}": {
			"patch": {
				"tags": [
					"分享"
				],
				"summary": "启用或停用分享",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"name": "shareId",
						"in": "path",
						"required": true
					},
					{
						"description": "请求体",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handlers.UpdateShareRequest"
						}
					}
				]
			},
			"delete": {
				"tags": [
					"分享"
				],
				"summary": "删除分享",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"name": "shareId",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/admin/stats": {
			"get": {
				"tags": [
					"管理后台"
				],
				"summary": "系统统计",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/admin/users": {
			"get": {
				"tags": [
					"管理后台"
				],
				"summary": "用户列表",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "string",
						"name": "search",
						"in": "query",
						"required": false
					}
				]
			},
			"post": {
				"tags": [
					"管理后台"
				],
				"summary": "创建用户",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"description": "请求体",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handlers.CreateUserRequest"
						}
					}
				]
			}
		},
		"/api/admin/users/{id}": {
			"get": {
				"tags": [
					"管理后台"
				],
				"summary": "用户详情",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			},
			"put": {
				"tags": [
					"管理后台"
				],
				"summary": "修改用户",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "请求体",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handlers.UpdateUserRequest"
						}
					}
				]
			},
			"delete": {
				"tags": [
					"管理后台"
				],
				"summary": "删除用户",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/admin/users/{id}/storage": {
			"get": {
				"tags": [
					"管理后台"
				],
				"summary": "用户存储用量",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"name": "id",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/admin/files": {
			"get": {
				"tags": [
					"管理后台"
				],
				"summary": "全部文件",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/api/admin/files/{fileId}": {
			"delete": {
				"tags": [
					"管理后台"
				],
				"summary": "删除任意文件",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "integer",
						"name": "fileId",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/api/admin/cleanup": {
			"post": {
				"tags": [
					"管理后台"
				],
				"summary": "手动清理",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/xerr.Response"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				],
				"parameters": [
					{
						"type": "string",
						"name": "task",
						"in": "query",
						"required": false
					}
				]
			}
		}
	},
	"definitions": {
		"xerr.Response": {
			"type": "object",
			"properties": {
				"code": {
					"type": "integer"
				},
				"message": {
					"type": "string"
				},
				"data": {}
			}
		},
		"handlers.RegisterRequest": {
			"type": "object",
			"properties": {
				"email": {
					"type": "string"
				},
				"password": {
					"type": "string"
				}
			},
			"required": [
				"email",
				"password"
			]
		},
		"handlers.LoginRequest": {
			"type": "object",
			"properties": {
				"email": {
					"type": "string"
				},
				"password": {
					"type": "string"
				}
			},
			"required": [
				"email",
				"password"
			]
		},
		"handlers.ArchiveRequest": {
			"type": "object",
			"properties": {
				"fileIds": {
					"type": "array",
					"items": {
						"type": "integer"
					}
				}
			},
			"required": [
				"fileIds"
			]
		},
		"handlers.CreateShareRequest": {
			"type": "object",
			"properties": {
				"fileId": {
					"type": "integer"
				},
				"password": {
					"type": "string"
				},
				"maxDownloads": {
					"type": "integer"
				},
				"expiresInHours": {
					"type": "number"
				},
				"title": {
					"type": "string"
				},
				"description": {
					"type": "string"
				}
			},
			"required": [
				"fileId"
			]
		},
		"handlers.UpdateShareRequest": {
			"type": "object",
			"properties": {
				"isActive": {
					"type": "boolean"
				}
			},
			"required": [
				"isActive"
			]
		},
		"handlers.CreateUserRequest": {
			"type": "object",
			"properties": {
				"email": {
					"type": "string"
				},
				"password": {
					"type": "string"
				},
				"role": {
					"type": "string"
				}
			},
			"required": [
				"email",
				"password"
			]
		},
		"handlers.UpdateUserRequest": {
			"type": "object",
			"properties": {
				"email": {
					"type": "string"
				},
				"password": {
					"type": "string"
				},
				"role": {
					"type": "string"
				},
				"isActive": {
					"type": "boolean"
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:		  "1.0",
	Host:			 "",
	BasePath:		 "/",
	Schemes:		  []string{},
	Title:			"go-fileshare API",
	Description:	  "文件分享服务：上传、分享链接、临时演示账号和管理后台",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:		"{{",
	RightDelim:	   "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
