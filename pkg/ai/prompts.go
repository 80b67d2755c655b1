package ai

const FunctionDescriptionPrompt = `
# Task Context
You extract the description of a function in JavaScript source code.

# Output Format
Return a JSON object such as:
{
  "description": "Creates the purchase order and notifies the supplier"
}

If no description can be derived, return:
{
  "description": ""
}

# Immediate Task Description or Request
Describe the function below in business terms. Return the full JSON object in one response, without other text, comments or markdown syntax.
---------------
` + "```javascript\n%s\n```\n"

const FunctionDependenciesPrompt = `
# Task Context
You extract the global instances used by a JavaScript function, together with the method called or field read on each of them. Local instances and function parameters are excluded.

# Output Format
Return a JSON object such as:
{
  "dependencies": [
    {
      "instanceName": "headerUtil",
      "method": "parseOperatorByModelName",
      "usage": "headerUtil.parseOperatorByModelName(operator, model)"
    },
    {
      "instanceName": "Model",
      "method": "updateMany",
      "usage": "Model.updateMany(_convertWhere(where, Model), data)"
    },
    {
      "instanceName": "organizationModel",
      "field": "localName",
      "usage": "organizationModel.localName"
    }
  ]
}
Every dependency has either "method" or "field", never both.

# Examples
For ` + "`async function getDescendants(req, res) { const descendants = await graphService.getDescendants(req.query); res.json(descendants); }`" + ` the output is:
{
  "dependencies": [
    {
      "instanceName": "graphService",
      "method": "getDescendants",
      "usage": "graphService.getDescendants(req.query)"
    }
  ]
}
It does NOT contain ` + "`res.json(descendants)` or `req.query`" + `, because res and req are parameters of the function.

If no dependencies are found, return:
{
  "dependencies": []
}

# Immediate Task Description or Request
Do the extraction for the code below. Return the full JSON object in one response, without other text, comments or markdown syntax.
---------------
` + "```javascript\n%s\n```\n"

const ModuleDependenciesPrompt = `
# Task Context
You extract the modules a JavaScript source file loads through ` + "`require`" + ` calls or ES6 ` + "`import`" + ` statements.

# Examples
1. ` + "`const stringify = require('csv-stringify/lib/sync');`" + `
{
  "dependencies": [
    { "moduleName": "stringify", "modulePath": "csv-stringify/lib/sync" }
  ]
}

2. ` + "`const { v4: uuidv4 } = require('uuid');`" + `
{
  "dependencies": [
    { "moduleName": "uuid", "modulePath": "uuid", "moduleInstance": "v4", "instanceAlias": "uuidv4" }
  ]
}

3. ` + "`const { Transform } = require('stream');`" + `
{
  "dependencies": [
    { "moduleName": "stream", "modulePath": "node:stream", "moduleInstance": "Transform" }
  ]
}

4. ` + "`const { throwError, INVALID_XXX } = require('../../common/utils/serviceErrorCode');`" + `
{
  "dependencies": [
    { "moduleName": "serviceErrorCode", "modulePath": "../../common/utils/serviceErrorCode", "moduleInstance": "throwError" },
    { "moduleName": "serviceErrorCode", "modulePath": "../../common/utils/serviceErrorCode", "moduleInstance": "INVALID_XXX" }
  ]
}

5. ` + "`import { GraphBuilder } from '../../../graph-builder.js';`" + `
{
  "dependencies": [
    { "moduleName": "GraphBuilder", "modulePath": "../../../graph-builder.js", "moduleInstance": "GraphBuilder" }
  ]
}

6. ` + "`import { default as config } from '../../../sample.config.js';`" + `
{
  "dependencies": [
    { "moduleName": "config", "modulePath": "../../../sample.config.js", "instanceAlias": "config" }
  ]
}

If no dependencies are found, return:
{
  "dependencies": []
}

# Immediate Task Description or Request
Do the extraction for the code below. Return the full JSON object in one response, without other text, comments or markdown syntax.
-------------
` + "```javascript\n%s\n```\n"
